package api

import (
	"errors"
	"fmt"

	"github.com/go-faster/jx"

	"groupmemail/internal/stories/relay"
)

// decodeChatEvent reads a bot callback payload. Presence of the attachments
// field and a null text are preserved for validation downstream.
func decodeChatEvent(raw []byte) (relay.ChatEvent, error) {
	var event relay.ChatEvent

	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return event, errors.New("payload is not an object")
	}

	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			v, err := scalarString(d)
			event.Name = v
			return err
		case "group_id":
			v, err := scalarString(d)
			event.GroupID = v
			return err
		case "text":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := scalarString(d)
			event.Text = &v
			return err
		case "attachments":
			if d.Next() == jx.Null {
				return d.Null()
			}
			event.HasAttachments = true
			event.Attachments = []relay.Attachment{}
			return d.Arr(func(d *jx.Decoder) error {
				a, err := decodeAttachment(d)
				if err != nil {
					return err
				}
				event.Attachments = append(event.Attachments, a)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return event, fmt.Errorf("decode chat event: %w", err)
	}

	return event, nil
}

func decodeAttachment(d *jx.Decoder) (relay.Attachment, error) {
	var a relay.Attachment
	if d.Next() != jx.Object {
		return a, d.Skip()
	}

	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "type":
			v, err := scalarString(d)
			a.Type = v
			return err
		case "url":
			v, err := scalarString(d)
			a.URL = v
			return err
		default:
			return d.Skip()
		}
	})
	return a, err
}

func scalarString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", d.Skip()
	}
}
