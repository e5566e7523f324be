package config

import "time"

// ServerConfig configures the HTTP API surface (internal/httpapi).
type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
}

// DatabaseConfig configures the SQL-backed Canvas/Session stores. URL is a
// postgres:// (Postgres/CockroachDB) URL or a SQLite DSN.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// AdminToolsConfig gates and configures the administrative tool group
// (internal/tools/admin), mirroring that package's CANVAS_AGENT_ENABLE_ADMIN_TOOLS
// env var so the flag can also be set from the config file.
type AdminToolsConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogPath string `yaml:"log_path"`
	GitDir  string `yaml:"git_dir"`
}
