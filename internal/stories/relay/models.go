package relay

import (
	"errors"
	"strings"
)

// Outcome is how an accepted chat event was resolved.
type Outcome string

const (
	OutcomeForwarded         Outcome = "forwarded"
	OutcomeSuppressed        Outcome = "suppressed"
	OutcomeCredentialInvalid Outcome = "credential_invalid"
)

// Rejections. None of them changes stored state or sends a notice.
var (
	ErrUnknownUser   = errors.New("unknown user")
	ErrUnknownSender = errors.New("unknown sender")
	ErrUnknownGroup  = errors.New("unknown group")
	ErrIgnored       = errors.New("subscription is ignored")
	ErrMalformed     = errors.New("malformed payload")
)

// ErrDelivery marks a failed hand-off to the email provider.
var ErrDelivery = errors.New("email delivery failed")

const attachmentTypeImage = "image"

type Attachment struct {
	Type string
	URL  string
}

// ChatEvent is one message delivered to a user's bot callback. Text is nil
// when the platform sent null; HasAttachments records whether the
// attachments field was present at all. DecodeErr carries a body that could
// not be parsed, so it is rejected only after the user is resolved.
type ChatEvent struct {
	Name           string
	Text           *string
	GroupID        string
	Attachments    []Attachment
	HasAttachments bool
	DecodeErr      error
}

func (e ChatEvent) text() string {
	if e.Text == nil {
		return ""
	}
	return strings.TrimSpace(*e.Text)
}

// Images returns the image attachments that carry a URL.
func (e ChatEvent) Images() []Attachment {
	var images []Attachment
	for _, a := range e.Attachments {
		if a.Type == attachmentTypeImage && a.URL != "" {
			images = append(images, a)
		}
	}
	return images
}

// Validate requires a sender, a group, the attachments field, and something
// to relay: text or at least one image.
func (e ChatEvent) Validate() error {
	switch {
	case e.DecodeErr != nil:
		return errors.Join(ErrMalformed, e.DecodeErr)
	case strings.TrimSpace(e.Name) == "":
		return errors.Join(ErrMalformed, errors.New("name is required"))
	case strings.TrimSpace(e.GroupID) == "":
		return errors.Join(ErrMalformed, errors.New("group_id is required"))
	case !e.HasAttachments:
		return errors.Join(ErrMalformed, errors.New("attachments is required"))
	case e.text() == "" && len(e.Images()) == 0:
		return errors.Join(ErrMalformed, errors.New("text or an image is required"))
	}
	return nil
}

// EmailReply is an inbound email addressed to a group's reply address.
type EmailReply struct {
	Sender    string
	Recipient string
	Body      string
}
