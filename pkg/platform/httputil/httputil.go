// Package httputil centralizes JSON response writing so handlers stay thin
// and error envelopes are consistent across endpoints.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "gatelog/pkg/errors"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into a JSON error envelope. Internal
// and storage errors omit the description so details stay in the logs.
func WriteError(w http.ResponseWriter, err error) {
	code := pkgerrors.CodeInternal
	message := ""

	var gw pkgerrors.GatewayError
	if errors.As(err, &gw) {
		code = gw.Code
		message = gw.Message
	}

	body := map[string]string{"error": string(code)}
	if message != "" && code != pkgerrors.CodeInternal && code != pkgerrors.CodeUnavailable {
		body["error_description"] = message
	}

	WriteJSON(w, pkgerrors.ToHTTPStatus(code), body)
}
