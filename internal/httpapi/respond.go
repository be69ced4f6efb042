// Package httpapi holds the small set of response-rendering helpers shared
// by cmd/lockserver and cmd/auditserver: every handler in both binaries
// funnels its errors through WriteError and its JSON results through
// WriteJSON so the wire format and error-status mapping stay in exactly
// one place. Handlers that return a PNG or raw payload bytes write those
// bodies directly.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"runtime/debug"

	"github.com/sage-x-project/lockaudit/apperr"
	"github.com/sage-x-project/lockaudit/internal/logger"
)

// WriteJSON writes v as a JSON body with status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError renders err as {"error": message} using apperr's status-code
// and message mapping. Every error kind that isn't NotFound or BadRequest
// renders as 500, deliberately giving callers no oracle distinguishing a
// cryptographic failure from a server fault. Internal errors (KindInternal
// or any non-apperr error) are logged at ERROR through the package-level
// logger with a "stack" field.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.KindInternal {
		logger.ErrorMsg(apperr.Message(err), logger.Error(err), logger.String("stack", string(debug.Stack())))
	}
	WriteJSON(w, apperr.StatusCode(err), map[string]string{"error": apperr.Message(err)})
}

// DecodeJSON decodes r's body into v, returning a BadRequest apperr on
// failure.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.BadRequest("malformed request body")
	}
	return nil
}

// ReadBody returns r's raw body bytes, for handlers that pass a request
// through to a component expecting opaque JSON (e.g. an uploaded pairing
// payload whose exact bytes matter for a later signature comparison).
func ReadBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, apperr.BadRequest("failed to read request body")
	}
	return body, nil
}

// ClientIP extracts the request's originating address, stripped of port,
// for comparison against an audit stamp's recorded client IP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
