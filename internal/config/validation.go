package config

import (
	"fmt"
	"regexp"
)

// validDatabaseName restricts database names to plain identifiers; they are
// interpolated into CREATE/DROP DATABASE statements.
var validDatabaseName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the configuration for values the provisioner cannot work with.
func Validate(cfg Config) error {
	switch cfg.Database.Driver {
	case DriverMySQL:
		if cfg.Database.Host == "" {
			return fmt.Errorf("database.host is required for driver %q", cfg.Database.Driver)
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			return fmt.Errorf("database.port %d out of range", cfg.Database.Port)
		}
	case DriverSQLite:
		if cfg.Database.Dir == "" {
			return fmt.Errorf("database.dir is required for driver %q", cfg.Database.Driver)
		}
	default:
		return fmt.Errorf("invalid database.driver %q: must be %q or %q", cfg.Database.Driver, DriverMySQL, DriverSQLite)
	}

	if !validDatabaseName.MatchString(cfg.Database.Name) {
		return fmt.Errorf("invalid database.name %q: must match %s", cfg.Database.Name, validDatabaseName)
	}
	if cfg.Database.Reference != "" && !validDatabaseName.MatchString(cfg.Database.Reference) {
		return fmt.Errorf("invalid database.reference %q: must match %s", cfg.Database.Reference, validDatabaseName)
	}
	if cfg.Database.Reference == cfg.Database.Name {
		return fmt.Errorf("database.reference must differ from database.name (%q)", cfg.Database.Name)
	}
	if cfg.Paths.LogDir == "" {
		return fmt.Errorf("paths.log_dir is required")
	}
	return nil
}
