package rest

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// Fixed error messages of the public API.
const (
	msgValidationFailed = "Validation Failed"
	msgNotFound         = "Item not found"
	msgConflict         = "Conflict"
	msgTooLarge         = "Request Entity Too Large"
	msgInternal         = "Internal Server Error"
)
