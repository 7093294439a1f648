package groupme

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"groupmemail/internal/stories/chat"
)

type envelope struct {
	response []byte
	code     int
	errors   []string
}

func decodeEnvelope(raw []byte) (envelope, error) {
	var env envelope
	if len(raw) == 0 {
		return env, nil
	}

	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "response":
			r, err := d.Raw()
			if err != nil {
				return err
			}
			if string(r) != "null" {
				env.response = r
			}
			return nil
		case "meta":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "code":
					code, err := d.Int()
					env.code = code
					return err
				case "errors":
					return d.Arr(func(d *jx.Decoder) error {
						msg, err := decodeString(d)
						if err != nil {
							return err
						}
						env.errors = append(env.errors, msg)
						return nil
					})
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return env, errors.Wrap(err, "decode envelope")
	}

	return env, nil
}

// decodeString accepts strings, numbers and null; ids come back as either.
func decodeString(d *jx.Decoder) (string, error) {
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

// decodeFields fills the string fields named in dst and skips the rest.
func decodeFields(d *jx.Decoder, dst map[string]*string) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		target, ok := dst[key]
		if !ok {
			return d.Skip()
		}
		v, err := decodeString(d)
		if err != nil {
			return err
		}
		*target = v
		return nil
	})
}

func requireResponse(resp []byte, what string) error {
	if resp == nil {
		return errors.Errorf("empty %s response", what)
	}
	return nil
}

func decodeUser(resp []byte) (*chat.User, error) {
	if err := requireResponse(resp, "user"); err != nil {
		return nil, &transientError{op: "me", err: err}
	}

	var u chat.User
	var userID string
	err := decodeFields(jx.DecodeBytes(resp), map[string]*string{
		"id":      &u.ID,
		"user_id": &userID,
		"name":    &u.Name,
		"email":   &u.Email,
	})
	if err != nil {
		return nil, &transientError{op: "me", err: errors.Wrap(err, "decode user")}
	}
	if u.ID == "" {
		u.ID = userID
	}

	return &u, nil
}

func decodeGroup(resp []byte) (*chat.Group, error) {
	if err := requireResponse(resp, "group"); err != nil {
		return nil, &transientError{op: "group", err: err}
	}

	var g chat.Group
	err := decodeFields(jx.DecodeBytes(resp), map[string]*string{
		"id":        &g.ID,
		"name":      &g.Name,
		"share_url": &g.ShareURL,
	})
	if err != nil {
		return nil, &transientError{op: "group", err: errors.Wrap(err, "decode group")}
	}

	return &g, nil
}

func decodeBot(d *jx.Decoder) (chat.Bot, error) {
	var b chat.Bot
	err := decodeFields(d, map[string]*string{
		"bot_id":       &b.ID,
		"name":         &b.Name,
		"group_id":     &b.GroupID,
		"callback_url": &b.CallbackURL,
	})
	return b, err
}

func decodeBots(resp []byte) ([]chat.Bot, error) {
	if resp == nil {
		return nil, nil
	}

	var bots []chat.Bot
	err := jx.DecodeBytes(resp).Arr(func(d *jx.Decoder) error {
		b, err := decodeBot(d)
		if err != nil {
			return err
		}
		bots = append(bots, b)
		return nil
	})
	if err != nil {
		return nil, &transientError{op: "bots", err: errors.Wrap(err, "decode bots")}
	}

	return bots, nil
}

// decodeCreatedBot reads {"bot": {...}}.
func decodeCreatedBot(resp []byte) (*chat.Bot, error) {
	if err := requireResponse(resp, "bot"); err != nil {
		return nil, &transientError{op: "create_bot", err: err}
	}

	var bot chat.Bot
	err := jx.DecodeBytes(resp).Obj(func(d *jx.Decoder, key string) error {
		if key != "bot" {
			return d.Skip()
		}
		b, err := decodeBot(d)
		bot = b
		return err
	})
	if err != nil {
		return nil, &transientError{op: "create_bot", err: errors.Wrap(err, "decode bot")}
	}

	return &bot, nil
}

func encodeMessage(text string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("message")
	e.ObjStart()
	e.FieldStart("source_guid")
	e.Str(uuid.NewString())
	e.FieldStart("text")
	e.Str(text)
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}

func encodeBot(bot chat.Bot) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("bot")
	e.ObjStart()
	if bot.ID != "" {
		e.FieldStart("bot_id")
		e.Str(bot.ID)
	}
	e.FieldStart("name")
	e.Str(bot.Name)
	e.FieldStart("group_id")
	e.Str(bot.GroupID)
	e.FieldStart("callback_url")
	e.Str(bot.CallbackURL)
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}

func encodeBotID(botID string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("bot_id")
	e.Str(botID)
	e.ObjEnd()
	return e.Bytes()
}
