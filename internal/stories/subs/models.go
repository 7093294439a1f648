package subs

import (
	"errors"
	"time"
)

const (
	DefaultTrialDays = 30
	PaymentDays      = 180
)

var (
	ErrNotFound      = errors.New("subscription not found")
	ErrAlreadyExists = errors.New("subscription already exists")
)

// Subscription links one chat user to one email address through a credential
// until Expiration.
type Subscription struct {
	UserID                string
	Email                 string
	Credential            string
	Expiration            time.Time
	ExpirationNotified    bool
	BadCredentialNotified bool
	Ignored               bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Expired reports whether service has lapsed at now.
func (s *Subscription) Expired(now time.Time) bool {
	return !now.Before(s.Expiration)
}

// Extended returns the expiration after adding days, floored at now.
func Extended(current, now time.Time, days int) time.Time {
	base := current
	if base.Before(now) {
		base = now
	}
	return base.AddDate(0, 0, days)
}

type GetCriteria struct {
	UserID *string
}

type ListCriteria struct {
	Ignored            *bool
	ExpirationNotified *bool
	// ExpiredAt selects subscriptions that have lapsed at the given time.
	ExpiredAt *time.Time
	Limit     int
	Offset    int
}

// UpdateParams carries field-level changes; nil fields are left untouched.
type UpdateParams struct {
	Credential            *string
	Expiration            *time.Time
	ExpirationNotified    *bool
	BadCredentialNotified *bool
	Ignored               *bool
}

type Stats struct {
	Total         int
	Active        int
	Expired       int
	Ignored       int
	BadCredential int
}
