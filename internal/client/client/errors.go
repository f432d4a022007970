package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

var (
	// ErrUnauthenticated: no credential is stored, nothing was sent.
	ErrUnauthenticated = errors.New("not signed in")
	// ErrSessionExpired: the credential was rejected and could not be refreshed.
	// The token store has been cleared; the user must sign in again.
	ErrSessionExpired = errors.New("session expired, please sign in again")
	// ErrUnauthorized: the server answered 401 to an already-refreshed request.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials: login rejected.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("not found")
	ErrUnavailable        = errors.New("server unavailable")
)

// StatusError is a non-2xx response. Message is the server's own text
// (the "message" or "error" field of the body) when it sent one.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server responded %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("server responded %d: %s", e.Code, e.Message)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrUnavailable:
		return e.Code == http.StatusBadGateway ||
			e.Code == http.StatusServiceUnavailable ||
			e.Code == http.StatusGatewayTimeout
	}
	return false
}

// NetworkError wraps transport-level failures: DNS, refused or reset
// connections, TLS, client timeouts. The request may or may not have reached
// the server.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }
func (e *NetworkError) Is(target error) bool {
	return target == ErrUnavailable
}

// IsNetworkError reports whether err is a transient connectivity failure
// worth retrying: transport errors, gateway 5xx answers, and raw socket
// errors that escaped wrapping.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH)
}
