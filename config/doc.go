// Package config loads command configuration with Viper.
//
// Values come from a config.yml found in standard locations, then from a
// .env file (godotenv), then from the process environment. Environment
// names map onto nested keys by splitting on underscores, so
// WINDOW_PERIOD=10s sets window.period.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("floq", &cfg, config.WithEnvPrefix("FLOQ"))
package config
