package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/blagoySimandov/askgate/internal/apperrors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

// writeError recovers the taxonomy error and renders the structured error
// envelope. Anything outside the taxonomy surfaces as INTERNAL_ERROR with
// its internals elided.
func writeError(w http.ResponseWriter, err error) {
	appErr := apperrors.From(err)

	body := map[string]any{
		"code":      appErr.Code,
		"message":   appErr.Message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range appErr.Details {
		body[k] = v
	}

	writeJSON(w, appErr.Status, map[string]any{"error": body})
}
