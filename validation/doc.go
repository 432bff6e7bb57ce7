// Package validation validates floq configuration.
//
// Struct tag validation (go-playground/validator) is used for loaded
// config structs; field names in errors follow their mapstructure keys.
// The programmatic Validator covers values checked by hand, such as
// operator constructor arguments.
//
//	type WindowConfig struct {
//	    Period time.Duration `mapstructure:"period" validate:"gt=0"`
//	}
//	err := validation.Validate(cfg)
package validation
