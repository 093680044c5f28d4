package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	IdleTimeout           time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	OfflineQueueAlertSize int64         `mapstructure:"offline_queue_alert_size" yaml:"offline_queue_alert_size"`
	HistoryPageSize       int           `mapstructure:"history_page_size" yaml:"history_page_size"`
	LoginRateLimit        int           `mapstructure:"login_rate_limit" yaml:"login_rate_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                  ":8080",
		ReadHeaderTimeout:     5 * time.Second,
		ShutdownTimeout:       5 * time.Second,
		DatabasePath:          "buddychat.db",
		LogLevel:              "info",
		JWTSecret:             "change-me",
		JWTIssuer:             "buddychat",
		JWTAudience:           "buddychat-clients",
		IdleTimeout:           10 * time.Minute,
		OfflineQueueAlertSize: 500,
		HistoryPageSize:       50,
		LoginRateLimit:        30,
	}
}
