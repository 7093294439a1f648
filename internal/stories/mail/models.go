package mail

import "context"

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	ReplyTo string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}
