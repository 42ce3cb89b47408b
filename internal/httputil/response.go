// Package httputil contains shared HTTP utilities for consistent response formatting across handlers.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/nadmax/medrank/internal/apperr"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func WriteJSONError(w http.ResponseWriter, message string, status int) {
	WriteJSON(w, status, map[string]string{
		"error": message,
	})
}

// WriteError writes err as {"error": code, "message": msg} with the status
// mapped from its code. Internal errors never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	code := apperr.ErrorCode(err)
	WriteJSON(w, apperr.StatusCode(code), map[string]string{
		"error":   code,
		"message": apperr.ErrorMessage(err),
	})
}
