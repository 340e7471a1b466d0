package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// PaymentMethods is the set of accepted payment methods for orders.
var PaymentMethods = map[string]bool{
	"cash":    true,
	"gcash":   true,
	"paymaya": true,
	"card":    true,
}

var mobilePattern = regexp.MustCompile(`^9[0-9]{9}$`)

// ErrInvalidPhone is returned for numbers that are not a local mobile number.
var ErrInvalidPhone = errors.New("invalid phone: enter 10 digits starting with 9")

// NormalizePhone accepts 9XXXXXXXXX or 09XXXXXXXXX and returns the
// 11-digit 09XXXXXXXXX form.
func NormalizePhone(raw string) (string, error) {
	digits := strings.TrimLeft(strings.TrimSpace(raw), "0")
	if !mobilePattern.MatchString(digits) {
		return "", ErrInvalidPhone
	}
	return "0" + digits, nil
}

// SanitizeValidationError takes a validator error and returns a user-friendly message
// without leaking internal Go struct names.
func SanitizeValidationError(err error) string {
	if err == nil {
		return ""
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "Invalid request body"
	}

	var messages []string
	for _, fe := range validationErrors {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "email":
			messages = append(messages, fmt.Sprintf("%s must be a valid email address", field))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "gte":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", field, fe.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", field))
		}
	}

	if len(messages) == 0 {
		return "Invalid request body"
	}

	return strings.Join(messages, "; ")
}
