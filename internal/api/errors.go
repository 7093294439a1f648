package api

import (
	"errors"
	"net/http"

	"groupmemail/internal/stories/chat"
	"groupmemail/internal/stories/maintenance"
	"groupmemail/internal/stories/relay"
	"groupmemail/internal/stories/subs"
)

func chatEventStatus(err error) int {
	switch {
	case errors.Is(err, relay.ErrUnknownUser):
		return http.StatusNotFound
	case errors.Is(err, relay.ErrIgnored):
		return http.StatusForbidden
	case errors.Is(err, relay.ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, relay.ErrUnknownGroup):
		return http.StatusUnprocessableEntity
	case errors.Is(err, relay.ErrDelivery), errors.Is(err, chat.ErrTransient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func emailReplyStatus(err error) int {
	switch {
	case errors.Is(err, relay.ErrUnknownSender):
		return http.StatusNotAcceptable
	case errors.Is(err, relay.ErrIgnored):
		return http.StatusForbidden
	case errors.Is(err, relay.ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrUnauthorized), errors.Is(err, chat.ErrNotFound):
		return http.StatusNotAcceptable
	case errors.Is(err, chat.ErrTransient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func accountStatus(err error) int {
	switch {
	case errors.Is(err, subs.ErrNoCredential), errors.Is(err, chat.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, maintenance.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, subs.ErrNotFound), errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, subs.ErrNoEmail):
		return http.StatusUnprocessableEntity
	case errors.Is(err, subs.ErrInvalidDays):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrTransient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal failure detail from 5xx responses.
func publicMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}
