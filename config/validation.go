package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/TuSKan/nwbchunk/backend"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks struct tags and the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return ValidatePolicy(backend.Kind(cfg.Backend.Kind), cfg.Policy)
}

// ValidatePolicy checks a policy against a backend kind: the default
// compression method, if set, must be registered and accept its options.
func ValidatePolicy(kind backend.Kind, p Policy) error {
	if err := validate.Struct(p); err != nil {
		return formatValidationError(err)
	}
	if p.DefaultCompressionMethod == "" {
		if len(p.DefaultCompressionOptions) > 0 {
			return fmt.Errorf("policy.default_compression_options set without policy.default_compression_method")
		}
		return nil
	}
	m, err := backend.Lookup(kind, p.DefaultCompressionMethod)
	if err != nil {
		return fmt.Errorf("policy.default_compression_method: %w", err)
	}
	if err := m.CheckOptions(p.DefaultCompressionOptions); err != nil {
		return fmt.Errorf("policy.default_compression_options: %w", err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		// Return the first validation error with context
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
