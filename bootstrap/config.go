package bootstrap

import (
	"github.com/kbukum/floq/config"
)

// Config is the constraint for command configuration types. A struct that
// embeds config.ServiceConfig gets GetServiceConfig through promotion and
// provides its own ApplyDefaults and Validate.
//
//	type AppConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Window WindowConfig  `yaml:"window" mapstructure:"window"`
//	}
//
//	app, err := bootstrap.NewApp(&cfg)
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
