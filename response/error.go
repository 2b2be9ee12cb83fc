package response

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Error is the JSON envelope returned for every non-2xx response
type Error struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Messages   []string    `json:"messages"`
	Result     interface{} `json:"result"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

func (e *Error) AddMessages(msgs ...string) *Error {
	e.Messages = append(e.Messages, msgs...)
	return e
}

func makeError(status int) *Error {
	return &Error{
		StatusCode: status,
		Messages:   make([]string, 0),
		Result:     []string{},
	}
}

// -----------------------------------------------

func ErrUnexpected() *Error {
	return makeError(http.StatusInternalServerError).
		WithMessage("An unexpected error has occured")
}

func ErrBadRequest() *Error {
	return makeError(http.StatusBadRequest).
		WithMessage("Bad request")
}

// ErrUnauthorized never says why a token was rejected
func ErrUnauthorized() *Error {
	return makeError(http.StatusUnauthorized).
		WithMessage("Unauthorized")
}

func ErrForbidden() *Error {
	return makeError(http.StatusForbidden).
		WithMessage("Forbidden")
}

func ErrNotFound() *Error {
	return makeError(http.StatusNotFound).
		WithMessage("Requested resources not found")
}

func ErrMethodNotAllowed() *Error {
	return makeError(http.StatusMethodNotAllowed).
		WithMessage("Method not allowed")
}

func ErrInvalidJson() *Error {
	return ErrBadRequest().AddMessages("Invalid JSON body")
}

// ErrValidation renders the field errors of a failed validator.Struct call.
// Any other error is reported as a single message.
func ErrValidation(err error) *Error {
	e := ErrBadRequest()
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return e.AddMessages(err.Error())
	}
	for _, fe := range fieldErrs {
		e.AddMessages(fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return e
}
