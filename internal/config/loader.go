package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides (TESTKIT_DATABASE_HOST, ...).
const EnvPrefix = "TESTKIT"

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "testkit.yaml"

// LoadOptions controls configuration loading.
type LoadOptions struct {
	// ConfigPath is an explicit config file. A missing explicit file is an error;
	// a missing DefaultConfigFile is not.
	ConfigPath string
	// FlagOverrides are highest-priority overrides from CLI flags (dot-notated keys).
	FlagOverrides map[string]any
}

// Load returns the effective configuration after applying precedence.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := mergeConfigFile(v, opts.ConfigPath); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, val := range opts.FlagOverrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults seeds viper with built-in defaults.
// Every key must have a default for AutomaticEnv to pick it up on Unmarshal.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("database.driver", def.Database.Driver)
	v.SetDefault("database.host", def.Database.Host)
	v.SetDefault("database.port", def.Database.Port)
	v.SetDefault("database.name", def.Database.Name)
	v.SetDefault("database.reference", def.Database.Reference)
	v.SetDefault("database.user", def.Database.User)
	v.SetDefault("database.password", def.Database.Password)
	v.SetDefault("database.charset", def.Database.Charset)
	v.SetDefault("database.dir", def.Database.Dir)

	v.SetDefault("run.verbose", def.Run.Verbose)
	v.SetDefault("run.cleanup_after_run", def.Run.CleanupAfterRun)

	v.SetDefault("paths.log_dir", def.Paths.LogDir)
	v.SetDefault("paths.upload_dir", def.Paths.UploadDir)

	v.SetDefault("test_data.password", def.TestData.Password)
	v.SetDefault("test_data.email_domain", def.TestData.EmailDomain)
	v.SetDefault("test_data.first_name", def.TestData.FirstName)
	v.SetDefault("test_data.last_name", def.TestData.LastName)

	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.token", def.Server.Token)
}

// mergeConfigFile merges the YAML config file if it exists.
func mergeConfigFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}
