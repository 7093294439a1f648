package groupme

import (
	"fmt"
	"net/http"
	"strings"

	"groupmemail/internal/stories/chat"
)

// APIError is a non-2xx answer from the platform.
type APIError struct {
	Op     string
	Status int
	Errors []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("groupme %s: status %d", e.Op, e.Status)
	if len(e.Errors) > 0 {
		msg += ": " + strings.Join(e.Errors, "; ")
	}
	return msg
}

// Unwrap maps the status to the failure class callers branch on.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return chat.ErrUnauthorized
	case http.StatusNotFound:
		return chat.ErrNotFound
	default:
		return chat.ErrTransient
	}
}

type transientError struct {
	op  string
	err error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("groupme %s: %v", e.op, e.err)
}

func (e *transientError) Unwrap() []error {
	return []error{chat.ErrTransient, e.err}
}
