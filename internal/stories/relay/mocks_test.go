package relay

import (
	"context"
	"strings"
	"sync"

	"groupmemail/internal/stories/chat"
	"groupmemail/internal/stories/mail"
	"groupmemail/internal/stories/subs"
)

type mockStorage struct {
	mu   sync.Mutex
	subs map[string]subs.Subscription
}

func newMockStorage(items ...subs.Subscription) *mockStorage {
	m := &mockStorage{subs: make(map[string]subs.Subscription)}
	for _, item := range items {
		m.subs[item.UserID] = item
	}
	return m
}

func (m *mockStorage) GetSubscription(_ context.Context, criteria subs.GetCriteria) (*subs.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[*criteria.UserID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (m *mockStorage) GetSubscriptionByEmail(_ context.Context, email string) (*subs.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs {
		if strings.EqualFold(sub.Email, email) {
			return &sub, nil
		}
	}
	return nil, nil
}

func (m *mockStorage) UpdateSubscription(_ context.Context, userID string, params subs.UpdateParams) (*subs.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[userID]
	if !ok {
		return nil, nil
	}
	if params.Credential != nil {
		sub.Credential = *params.Credential
	}
	if params.ExpirationNotified != nil {
		sub.ExpirationNotified = *params.ExpirationNotified
	}
	if params.BadCredentialNotified != nil {
		sub.BadCredentialNotified = *params.BadCredentialNotified
	}
	if params.Ignored != nil {
		sub.Ignored = *params.Ignored
	}
	m.subs[userID] = sub
	return &sub, nil
}

func (m *mockStorage) get(userID string) subs.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[userID]
}

type postedMessage struct {
	credential string
	groupID    string
	text       string
}

// mockChat serves every credential from the same canned state and records
// the calls made through it.
type mockChat struct {
	group    *chat.Group
	groupErr error
	bots     []chat.Bot
	postErr  error

	groupCalls int
	destroyed  []string
	posted     []postedMessage
}

func (m *mockChat) WithCredential(credential string) chat.Client {
	return &mockChatClient{parent: m, credential: credential}
}

type mockChatClient struct {
	parent     *mockChat
	credential string
}

func (c *mockChatClient) Me(context.Context) (*chat.User, error) {
	return &chat.User{}, nil
}

func (c *mockChatClient) Group(_ context.Context, groupID string) (*chat.Group, error) {
	c.parent.groupCalls++
	if c.parent.groupErr != nil {
		return nil, c.parent.groupErr
	}
	g := *c.parent.group
	g.ID = groupID
	return &g, nil
}

func (c *mockChatClient) PostMessage(_ context.Context, groupID, text string) error {
	if c.parent.postErr != nil {
		return c.parent.postErr
	}
	c.parent.posted = append(c.parent.posted, postedMessage{credential: c.credential, groupID: groupID, text: text})
	return nil
}

func (c *mockChatClient) Bots(context.Context) ([]chat.Bot, error) {
	return c.parent.bots, nil
}

func (c *mockChatClient) CreateBot(_ context.Context, name, groupID, callbackURL string) (*chat.Bot, error) {
	return &chat.Bot{ID: "new", Name: name, GroupID: groupID, CallbackURL: callbackURL}, nil
}

func (c *mockChatClient) UpdateBot(context.Context, chat.Bot) error {
	return nil
}

func (c *mockChatClient) DestroyBot(_ context.Context, botID string) error {
	c.parent.destroyed = append(c.parent.destroyed, botID)
	return nil
}

type mockMailer struct {
	sent []mail.Message
	err  error
}

func (m *mockMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockMailer) subjects() []string {
	var out []string
	for _, msg := range m.sent {
		out = append(out, msg.Subject)
	}
	return out
}
