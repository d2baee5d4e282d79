package jsonutil

import (
	"encoding/json"
	"log"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// WriteError writes a JSON error response with the standard {error} shape.
func WriteError(w http.ResponseWriter, status int, errMsg string) {
	log.Printf("Error: %s", errMsg)
	WriteJSON(w, status, map[string]string{"error": errMsg})
}

// WriteErrorDetails writes a JSON error response carrying upstream detail,
// {error, details}, used for persistence failures surfaced as 500s.
func WriteErrorDetails(w http.ResponseWriter, status int, errMsg, details string) {
	log.Printf("Error: %s (%s)", errMsg, details)
	WriteJSON(w, status, map[string]string{"error": errMsg, "details": details})
}
