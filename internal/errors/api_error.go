package errors

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, "internal_error", message)
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, "unauthorized", message)
}

// Unavailable reports a dependency that failed transiently; the client may retry.
func Unavailable(code, message string) *APIError {
	return New(http.StatusServiceUnavailable, code, message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

func Conflict(code, message string, details interface{}) *APIError {
	err := New(http.StatusConflict, code, message)
	err.Details = details
	return err
}

type FieldViolation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// Validation turns validator output into a 400. The code comes from the first
// failing field via codes, falling back to "invalid_input".
func Validation(err error, codes map[string]string) *APIError {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return BadRequest("invalid_input", "invalid input")
	}

	violations := make([]FieldViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, FieldViolation{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}

	first := fieldErrs[0]
	code, ok := codes[first.Field()]
	if !ok {
		code = "invalid_input"
	}
	message := strings.ToLower(first.Field()) + " failed " + first.Tag()
	if first.Param() != "" {
		message += "=" + first.Param()
	}

	apiErr := BadRequest(code, message)
	apiErr.Details = violations
	return apiErr
}
