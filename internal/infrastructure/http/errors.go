package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the JSON error body returned by the control API.
type ErrorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// WriteError sends statusCode with a JSON error body. A nil detail slice is
// rendered as an empty array so UI clients can iterate unconditionally.
func WriteError(w http.ResponseWriter, statusCode int, message string, details []string, log *slog.Logger) {
	if details == nil {
		details = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	err := json.NewEncoder(w).Encode(ErrorResponse{Message: message, Errors: details})
	if err != nil && log != nil {
		// The status line is already out; nothing more can be sent.
		log.Error("error response not written", "error", err)
	}
}
