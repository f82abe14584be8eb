package config

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:    DriverMySQL,
			Host:      "localhost",
			Port:      3306,
			Name:      "research_apps_test",
			Reference: "research_apps",
			User:      "root",
			Password:  "",
			Charset:   "utf8mb4",
			Dir:       "tests/data",
		},
		Run: RunConfig{
			Verbose:         true,
			CleanupAfterRun: true,
		},
		Paths: PathsConfig{
			LogDir:    "tests/logs",
			UploadDir: "tests/uploads",
		},
		TestData: TestDataConfig{
			Password:    "TestPassword123!",
			EmailDomain: "example.com",
			FirstName:   "Test",
			LastName:    "User",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8089",
		},
	}
}
