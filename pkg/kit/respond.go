package kit

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the fixed {"error": msg} body. The request id is carried
// by the X-Request-Id response header, see RequestIDHeader.
func WriteError(w http.ResponseWriter, _ *http.Request, status int, msg string, details any) {
	WriteJSON(w, status, ErrorResponse{
		Error:   msg,
		Details: details,
	})
}
