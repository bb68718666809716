package gormstore

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds the settings of one relational document store.
type DatabaseConfig struct {
	Type     string     `yaml:"type"`      // Database type ("postgres", "mysql" or "sqlite").
	Host     string     `yaml:"host"`      // Database host address.
	Port     int        `yaml:"port"`      // Database port number.
	Database string     `yaml:"database"`  // Database name, or the file path for sqlite.
	User     string     `yaml:"user"`      // Database user.
	Password string     `yaml:"password"`  // Database password.
	Sslmode  string     `yaml:"sslmode"`   // SSL mode for PostgreSQL.
	Migrate  *bool      `yaml:"migrate"`   // Migrate applies the embedded schema at open; default true.
	LogLevel string     `yaml:"log_level"` // LogLevel of the gorm logger; default SILENT.
	Pool     PoolConfig `yaml:"pool"`      // Connection pool settings.
}

func (c DatabaseConfig) migrateEnabled() bool {
	return c.Migrate == nil || *c.Migrate
}
