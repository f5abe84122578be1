package server

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrValidation indicates a bad query parameter.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var ve *ErrValidation
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
