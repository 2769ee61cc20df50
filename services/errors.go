package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrGatewayTimeout = errors.New("gateway_timeout")
	ErrNotApproved    = errors.New("application is not approved")
)

// RelayError is an error with a definite HTTP status and a stable code that
// handlers return as {ok:false, error:code, ...}.
type RelayError struct {
	Status  int
	Code    string
	Detail  string
	Missing []string
	Raw     string
	Err     error
}

func (e *RelayError) Error() string {
	msg := e.Code
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if len(e.Missing) > 0 {
		msg += " (" + strings.Join(e.Missing, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RelayError) Unwrap() error { return e.Err }

func validationError(code string, missing ...string) *RelayError {
	return &RelayError{Status: http.StatusBadRequest, Code: code, Missing: missing}
}

// envMissing names every variable the caller needs to set.
func envMissing(code string, missing []string) *RelayError {
	return &RelayError{
		Status:  http.StatusInternalServerError,
		Code:    code,
		Detail:  fmt.Sprintf("%s not set", strings.Join(missing, ", ")),
		Missing: missing,
	}
}

func notJSON(code string, raw string, limit int) *RelayError {
	return &RelayError{Status: http.StatusBadGateway, Code: code, Raw: Snippet(raw, limit)}
}

func upstreamError(code string, err error) *RelayError {
	status := http.StatusBadGateway
	if errors.Is(err, ErrGatewayTimeout) {
		status = http.StatusGatewayTimeout
	}
	return &RelayError{Status: status, Code: code, Err: err}
}

// Snippet trims raw upstream output for diagnostics.
func Snippet(raw string, limit int) string {
	if limit <= 0 || len(raw) <= limit {
		return raw
	}
	// a cut in the middle of a multi-byte rune is dropped
	return strings.ToValidUTF8(raw[:limit], "")
}

// IsTimeout reports whether err came from a bounded backend call running out.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrGatewayTimeout)
}
