package rewards

import (
	"errors"
	"fmt"
	"strings"

	"gasly-backend/models"

	"github.com/google/uuid"
)

var (
	// ErrInsufficientPoints is returned when a redemption costs more than the available balance.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrPointsDisabled is returned when redeeming while the program is switched off.
	ErrPointsDisabled = errors.New("rewards program is disabled")
)

// AuthorizationError is returned when the acting role may not perform an action.
type AuthorizationError struct {
	Role   models.Role
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q is not allowed to %s", e.Role, e.Action)
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated field, not just the first.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "invalid rewards policy: " + strings.Join(parts, "; ")
}

// Has reports whether field is among the violations.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// DataIntegrityError reports a record whose redeemed points exceed its earned
// points. It is logged, never shown to customers.
type DataIntegrityError struct {
	CustomerID     uuid.UUID
	TotalPoints    int64
	RedeemedPoints int64
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("customer %s has negative available points (total=%d redeemed=%d)",
		e.CustomerID, e.TotalPoints, e.RedeemedPoints)
}
