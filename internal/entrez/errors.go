package entrez

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// StatusError reports a non-200 HTTP response from the E-utilities endpoint.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("eutils %s returned status %d", e.Endpoint, e.Code)
}

// IsTransport reports whether err is a connectivity or protocol failure
// talking to the remote service, as opposed to a malformed payload. Transport
// failures earn the longer retry backoff; context cancellation is neither.
func IsTransport(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
