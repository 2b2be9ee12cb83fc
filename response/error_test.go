package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(rec, req, ErrBadRequest().AddMessages("amount failed on required"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, body.StatusCode)
	assert.Equal(t, "Bad request", body.Message)
	assert.Equal(t, []string{"amount failed on required"}, body.Messages)
}

func TestErrValidation(t *testing.T) {
	type input struct {
		Email string `validate:"required,email"`
	}
	err := validator.New().Struct(&input{})
	require.Error(t, err)

	e := ErrValidation(err)
	assert.Equal(t, http.StatusBadRequest, e.StatusCode)
	assert.Equal(t, []string{"Email failed on required"}, e.Messages)

	e = ErrValidation(errors.New("boom"))
	assert.Equal(t, []string{"boom"}, e.Messages)
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "HTTP 401: Unauthorized", ErrUnauthorized().Error())
	assert.Equal(t, "HTTP 500: An unexpected error has occured", ErrUnexpected().Error())
}
