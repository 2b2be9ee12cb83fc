package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads the request body into v. The returned Error is nil on success.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) *Error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return ErrInvalidJson().AddMessages(fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type))
		}
		return ErrInvalidJson()
	}
	return nil
}
