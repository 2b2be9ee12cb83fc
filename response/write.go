package response

import (
	"encoding/json"
	"net/http"
)

// WriteError serializes e with its status code
func WriteError(w http.ResponseWriter, r *http.Request, e *Error) {
	writeJSON(w, e.StatusCode, e)
}

// WriteResponse serializes result with 200 OK
func WriteResponse(w http.ResponseWriter, r *http.Request, result interface{}) {
	writeJSON(w, http.StatusOK, result)
}

// WriteStatus serializes result with the given status code
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, result interface{}) {
	writeJSON(w, status, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
