package links

import (
	"net/url"
	"strings"
)

const incomingPrefix = "/incoming/"

// Builder produces the externally visible URLs of the relay and the chat web app.
type Builder struct {
	publicURL string
	webURL    string
}

func NewBuilder(publicURL, webURL string) Builder {
	return Builder{
		publicURL: strings.TrimSuffix(publicURL, "/"),
		webURL:    strings.TrimSuffix(webURL, "/"),
	}
}

func IncomingPath(userID string) string {
	return incomingPrefix + url.PathEscape(userID)
}

// IncomingURL is the bot callback registered for userID.
func (b Builder) IncomingURL(userID string) string {
	return b.publicURL + IncomingPath(userID)
}

// OwnsCallback reports whether callbackURL routes to userID's incoming
// endpoint, regardless of the host it was registered with.
func (b Builder) OwnsCallback(callbackURL, userID string) bool {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), IncomingPath(userID))
}

func (b Builder) ChatsURL() string {
	return b.webURL + "/chats"
}

// GroupURL falls back to the generic chats page when groupID is unknown.
func (b Builder) GroupURL(groupID string) string {
	if groupID == "" {
		return b.ChatsURL()
	}
	return b.ChatsURL() + "/" + url.PathEscape(groupID)
}
