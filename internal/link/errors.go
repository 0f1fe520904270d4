package link

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidTTL       = errors.New("ttl must be positive and within the allowed maximum")
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidTarget    = errors.New("blob does not exist")
	ErrNotFound         = errors.New("link not found")
	ErrExpired          = errors.New("link has expired")

	// ErrUnavailable marks transient upstream failures (throttling, timeouts,
	// dropped connections). Backends wrap their driver errors with it.
	ErrUnavailable = errors.New("upstream unavailable")
)

// Kind is the error taxonomy exposed to callers.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindExpired      Kind = "expired"
	KindUnavailable  Kind = "upstream_unavailable"
	KindFatal        Kind = "fatal"
)

// KindOf classifies err. A nil error has no kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidTTL), errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrExpired):
		return KindExpired
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrInvalidTarget):
		return KindNotFound
	case errors.Is(err, ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return KindUnavailable
	default:
		return KindFatal
	}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return KindOf(err) == KindUnavailable
}

// HTTPStatus maps domain errors to HTTP status codes.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput, KindExpired:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
