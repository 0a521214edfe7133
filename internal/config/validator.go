package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers the hostname_port tag used by
// ListenConfig.ListenAddr.
func RegisterCustomValidators(v *validator.Validate) {
	_ = v.RegisterValidation("hostname_port", validateHostnamePort)
}

// validateHostnamePort checks that a field is a "host:port" pair with a
// numeric port, the same shape net.SplitHostPort accepts.
func validateHostnamePort(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	if port == "" {
		return false
	}
	_ = host
	return true
}

// Validate validates the ServerConfig using struct tags.
func (c *ServerConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	RegisterCustomValidators(v)
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors into
// user-friendly, semicolon-joined messages.
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

// formatSingleValidationError creates a user-friendly message for a single validation error.
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
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
