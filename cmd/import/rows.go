package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"groupmemail/internal/address"
	"groupmemail/internal/stories/subs"
)

var dateFormats = []string{
	time.RFC3339,
	time.DateTime,
	time.DateOnly,
	"02.01.2006",
}

type columns map[string]int

func parseHeader(header []string) (columns, error) {
	cols := make(columns, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range []string{"user_id", "email", "expiration"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("header is missing %q", required)
		}
	}
	return cols, nil
}

func (c columns) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c columns) parse(record []string) (subs.Subscription, error) {
	userID := c.get(record, "user_id")
	if userID == "" {
		return subs.Subscription{}, fmt.Errorf("empty user_id")
	}

	email := address.Canonicalize(c.get(record, "email"))
	if email == "" {
		return subs.Subscription{}, fmt.Errorf("user %s: empty email", userID)
	}

	expiration, err := parseDate(c.get(record, "expiration"))
	if err != nil {
		return subs.Subscription{}, fmt.Errorf("user %s: %w", userID, err)
	}

	var ignored bool
	if raw := c.get(record, "ignored"); raw != "" {
		ignored, err = strconv.ParseBool(raw)
		if err != nil {
			return subs.Subscription{}, fmt.Errorf("user %s: invalid ignored %q", userID, raw)
		}
	}

	return subs.Subscription{
		UserID:     userID,
		Email:      email,
		Credential: c.get(record, "credential"),
		Expiration: expiration,
		Ignored:    ignored,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty expiration")
	}

	for _, format := range dateFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse date: %s", s)
}
