package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

// now is swapped in tests that assert on the envelope time.
var now = time.Now

type responseEnvelope struct {
	Data  any    `json:"data,omitempty"`
	Time  string `json:"time"`
	Error any    `json:"error,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, env responseEnvelope) {
	env.Time = now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	writeEnvelope(w, status, responseEnvelope{Data: v})
}

func WriteError[T any](w http.ResponseWriter, status int, errBody ErrorResponse[T]) {
	writeEnvelope(w, status, responseEnvelope{Error: errBody})
}

// WriteErrorCode writes an error without details.
func WriteErrorCode(w http.ResponseWriter, status int, code ErrorCode, message string) {
	WriteError(w, status, ErrorResponse[any]{Code: code, Message: message})
}
