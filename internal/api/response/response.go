// Package response writes the API's JSON envelopes. Success bodies nest
// under "data", listings add a "meta" pagination block, and failures use
// a structured "error" object so clients can branch on a stable code.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// PaginationMeta describes the page of a Collection response relative to
// the full result set.
type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

type dataBody struct {
	Data any `json:"data"`
}

type pageBody struct {
	Data any            `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

type errBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details,omitempty"`
	} `json:"error"`
}

// JSON writes a 200 with data under the standard envelope.
func JSON(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, dataBody{Data: data})
}

// Accepted writes a 202; used for job submissions, which complete
// asynchronously.
func Accepted(w http.ResponseWriter, data any) {
	write(w, http.StatusAccepted, dataBody{Data: data})
}

// Collection writes one page of a listing with its pagination meta.
func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	write(w, http.StatusOK, pageBody{Data: data, Meta: meta})
}

// Error writes a failure envelope. code is a stable machine-readable
// identifier; details is optional supporting context and is omitted when
// nil.
func Error(w http.ResponseWriter, status int, code, message string, details any) {
	var body errBody
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Details = details
	write(w, status, body)
}

func write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response body", "error", err)
	}
}
