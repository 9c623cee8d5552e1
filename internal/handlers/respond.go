package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type messageResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// writeError logs err and answers with a generic message; causes never reach
// the client.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	slog.Error(message, "error", err, "method", r.Method, "path", r.URL.Path)
	writeMessage(w, status, message)
}

// CSRFFailureHandler answers rejected CSRF checks in the API's JSON shape.
func CSRFFailureHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Warn("CSRF check failed", "path", r.URL.Path, "ip", clientIP(r))
		writeMessage(w, http.StatusForbidden, "Invalid CSRF token")
	})
}
