package chat

import (
	"context"
	"errors"
)

// Failure classes every platform call is reduced to.
var (
	ErrUnauthorized = errors.New("chat: credential rejected")
	ErrNotFound     = errors.New("chat: resource not found")
	ErrTransient    = errors.New("chat: transient failure")
)

type User struct {
	ID    string
	Name  string
	Email string
}

type Group struct {
	ID       string
	Name     string
	ShareURL string
}

type Bot struct {
	ID          string
	Name        string
	GroupID     string
	CallbackURL string
}

// Client is the platform API bound to a single user's credential.
type Client interface {
	Me(ctx context.Context) (*User, error)
	Group(ctx context.Context, groupID string) (*Group, error)
	PostMessage(ctx context.Context, groupID, text string) error
	Bots(ctx context.Context) ([]Bot, error)
	CreateBot(ctx context.Context, name, groupID, callbackURL string) (*Bot, error)
	UpdateBot(ctx context.Context, bot Bot) error
	DestroyBot(ctx context.Context, botID string) error
}

type Factory interface {
	WithCredential(credential string) Client
}
