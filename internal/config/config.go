// Package config holds the harness configuration.
// Precedence: defaults < config file (YAML) < env (TESTKIT_*) < flags.
package config

// Config is the top-level configuration structure.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Run      RunConfig      `mapstructure:"run" yaml:"run"`
	Paths    PathsConfig    `mapstructure:"paths" yaml:"paths"`
	TestData TestDataConfig `mapstructure:"test_data" yaml:"test_data"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
}

// DatabaseConfig describes the test database and the reference schema it is cloned from.
type DatabaseConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"` // mysql | sqlite
	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
	Name      string `mapstructure:"name" yaml:"name"`
	Reference string `mapstructure:"reference" yaml:"reference"`
	User      string `mapstructure:"user" yaml:"user"`
	Password  string `mapstructure:"password" yaml:"password"`
	Charset   string `mapstructure:"charset" yaml:"charset"`
	// Dir holds the database files for the sqlite driver.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// RunConfig holds runner behavior knobs.
type RunConfig struct {
	Verbose         bool `mapstructure:"verbose" yaml:"verbose"`
	CleanupAfterRun bool `mapstructure:"cleanup_after_run" yaml:"cleanup_after_run"`
}

// PathsConfig holds the directories the provisioner creates.
type PathsConfig struct {
	LogDir    string `mapstructure:"log_dir" yaml:"log_dir"`
	UploadDir string `mapstructure:"upload_dir" yaml:"upload_dir"`
}

// TestDataConfig holds fixed values used by the fixture factory.
type TestDataConfig struct {
	Password    string `mapstructure:"password" yaml:"password"`
	EmailDomain string `mapstructure:"email_domain" yaml:"email_domain"`
	FirstName   string `mapstructure:"first_name" yaml:"first_name"`
	LastName    string `mapstructure:"last_name" yaml:"last_name"`
}

// ServerConfig configures the non-interactive dispatcher.
type ServerConfig struct {
	Addr  string `mapstructure:"addr" yaml:"addr"`
	Token string `mapstructure:"token" yaml:"token"`
}
