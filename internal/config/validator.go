package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers GaaS-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("duration_string", validateDurationString); err != nil {
		return fmt.Errorf("failed to register duration_string validator: %w", err)
	}
	if err := v.RegisterValidation("argon2id_hash", validateArgon2idHash); err != nil {
		return fmt.Errorf("failed to register argon2id_hash validator: %w", err)
	}
	return nil
}

// validateDurationString validates Go duration strings like "30s" or "1h".
func validateDurationString(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// validateArgon2idHash validates the encoded argon2id hash format produced
// by `gaas hash-key`.
func validateArgon2idHash(fl validator.FieldLevel) bool {
	return strings.HasPrefix(fl.Field().String(), "$argon2id$")
}

// Validate validates the Config using struct tags.
// Returns an error with actionable messages on failure.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for one validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "duration_string":
		return fmt.Sprintf("%s must be a positive duration like \"30s\"", field)
	case "argon2id_hash":
		return fmt.Sprintf("%s must be an encoded argon2id hash (see `gaas hash-key`)", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
