package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks failures to reach the backend at all, as opposed to the
	// backend answering with an error.
	ErrNetwork         = errors.New("backend unreachable")
	ErrInvalidResponse = errors.New("invalid backend response")
)

// APIError is a request the backend answered but rejected, either with a
// non-2xx status or with success=false. Message is the backend's text verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend rejected request (status %d)", e.Status)
	}
	return e.Message
}

func IsAPIError(err error) bool {
	var e *APIError
	return errors.As(err, &e)
}
