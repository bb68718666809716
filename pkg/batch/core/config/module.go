package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Congresso.System.Logging
}

// Module provides the configuration and its sub-sections to Fx.
var Module = fx.Options(
	fx.Provide(
		NewConfigProvider,
		NewLoggingConfigProvider,
		func() EnvironmentExpander { return NewOsEnvironmentExpander() },
	),
)
