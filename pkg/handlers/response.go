// Package handlers implements the HTTP API: chat, schema inspection and
// health endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/terralinea/geosql-engine/pkg/correct"
)

// apiError is the envelope of every non-2xx response that is not a draft
// rejection.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RejectionResponse reports a draft the correction engine refused: the
// offending statement plus the engine's reason code and identifier.
type RejectionResponse struct {
	Question   string         `json:"question,omitempty"`
	SQL        string         `json:"sql"`
	Rejected   bool           `json:"rejected"`
	Reason     correct.Reason `json:"reason"`
	Identifier string         `json:"identifier,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, apiError{Error: errorCode, Message: message})
}

// WriteRejection writes the 422 payload for a rejected draft.
func WriteRejection(w http.ResponseWriter, question, sql string, rej *correct.Rejection) error {
	return WriteJSON(w, http.StatusUnprocessableEntity, RejectionResponse{
		Question:   question,
		SQL:        sql,
		Rejected:   true,
		Reason:     rej.Reason,
		Identifier: rej.Identifier,
		Message:    rej.Message,
	})
}
