package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupmemail/internal/stories/chat"
	"groupmemail/internal/stories/maintenance"
	"groupmemail/internal/stories/relay"
	"groupmemail/internal/stories/subs"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

type mockRelay struct {
	userID   string
	event    relay.ChatEvent
	reply    relay.EmailReply
	outcome  relay.Outcome
	eventErr error
	replyErr error
}

func (m *mockRelay) HandleChatEvent(_ context.Context, userID string, event relay.ChatEvent) (relay.Outcome, error) {
	m.userID = userID
	m.event = event
	return m.outcome, m.eventErr
}

func (m *mockRelay) HandleEmailReply(_ context.Context, reply relay.EmailReply) error {
	m.reply = reply
	return m.replyErr
}

type mockSubscriptions struct {
	credential string
	groupID    string
	extended   string
	days       int
	sub        *subs.Subscription
	err        error
}

func (m *mockSubscriptions) Subscribe(_ context.Context, credential, groupID string) (*subs.Subscription, error) {
	m.credential, m.groupID = credential, groupID
	return m.sub, m.err
}

func (m *mockSubscriptions) Unsubscribe(_ context.Context, credential, groupID string) (int, error) {
	m.credential, m.groupID = credential, groupID
	return 2, m.err
}

func (m *mockSubscriptions) Status(_ context.Context, credential string) (*subs.Status, error) {
	m.credential = credential
	if m.err != nil {
		return nil, m.err
	}
	return &subs.Status{
		User:         &chat.User{ID: "100", Name: "Alice"},
		Subscription: m.sub,
		Message:      subs.StatusMessage(m.sub, testNow),
	}, nil
}

func (m *mockSubscriptions) Extend(_ context.Context, userID string, days int) (*subs.Subscription, error) {
	m.extended, m.days = userID, days
	return m.sub, m.err
}

func (m *mockSubscriptions) SetIgnored(_ context.Context, userID string, ignored bool) (*subs.Subscription, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &subs.Subscription{UserID: userID, Ignored: ignored}, nil
}

func (m *mockSubscriptions) AddAltEmail(_ context.Context, userID, altEmail string) error {
	m.extended, m.credential = userID, altEmail
	return m.err
}

type mockMaintenance struct {
	err      error
	adminErr error
}

func (m *mockMaintenance) Authorize(context.Context, string) (*chat.User, error) {
	if m.adminErr != nil {
		return nil, m.adminErr
	}
	return &chat.User{ID: "9", Email: "admin@example.com"}, nil
}

func (m *mockMaintenance) ResetCallbackURLs(context.Context, string) (maintenance.Report, error) {
	return maintenance.Report{Users: 3, Updated: 1}, m.err
}

type testRouter struct {
	relay       *mockRelay
	subs        *mockSubscriptions
	maintenance *mockMaintenance
	engine      *gin.Engine
}

func newTestRouter() *testRouter {
	tr := &testRouter{
		relay: &mockRelay{outcome: relay.OutcomeForwarded},
		subs: &mockSubscriptions{sub: &subs.Subscription{
			UserID:     "100",
			Email:      "alice@example.com",
			Expiration: testNow.AddDate(0, 0, 30),
		}},
		maintenance: &mockMaintenance{},
	}
	r := NewRouter(tr.relay, tr.subs, tr.maintenance, "s3cret",
		func() time.Time { return testNow },
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	tr.engine = r.Setup(false)
	return tr
}

func (tr *testRouter) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	tr.engine.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPing(t *testing.T) {
	tr := newTestRouter()

	w := tr.do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestIncoming_DecodesEvent(t *testing.T) {
	tr := newTestRouter()

	w := tr.do(jsonRequest(http.MethodPost, "/incoming/100", `{
		"attachments": [{"type":"image","url":"https://i.groupme.com/1.png"},{"type":"mentions","user_ids":["1"]}],
		"avatar_url": null,
		"group_id": "42",
		"name": "Bob",
		"sender_type": "user",
		"text": "hi",
		"user_id": 7
	}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Thank you.", w.Body.String())
	assert.Equal(t, "100", tr.relay.userID)

	ev := tr.relay.event
	assert.Equal(t, "Bob", ev.Name)
	assert.Equal(t, "42", ev.GroupID)
	require.NotNil(t, ev.Text)
	assert.Equal(t, "hi", *ev.Text)
	assert.True(t, ev.HasAttachments)
	assert.Equal(t, []relay.Attachment{
		{Type: "image", URL: "https://i.groupme.com/1.png"},
		{Type: "mentions"},
	}, ev.Attachments)
}

func TestIncoming_NullTextAndMissingAttachments(t *testing.T) {
	tr := newTestRouter()

	w := tr.do(jsonRequest(http.MethodPost, "/incoming/100", `{"name":"Bob","group_id":42,"text":null}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, tr.relay.event.Text)
	assert.False(t, tr.relay.event.HasAttachments)
	assert.Equal(t, "42", tr.relay.event.GroupID)
}

func TestIncoming_InvalidJSON(t *testing.T) {
	tr := newTestRouter()

	tr.relay.eventErr = relay.ErrMalformed

	w := tr.do(jsonRequest(http.MethodPost, "/incoming/100", `[1,2`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "100", tr.relay.userID)
	assert.Error(t, tr.relay.event.DecodeErr)
}

func TestIncoming_InvalidJSONUnknownUser(t *testing.T) {
	tr := newTestRouter()
	tr.relay.eventErr = relay.ErrUnknownUser

	w := tr.do(jsonRequest(http.MethodPost, "/incoming/999", `not json`))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "999", tr.relay.userID)
}

func TestIncoming_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		outcome relay.Outcome
		err     error
		want    int
	}{
		{name: "forwarded", outcome: relay.OutcomeForwarded, want: http.StatusOK},
		{name: "credential invalid", outcome: relay.OutcomeCredentialInvalid, want: http.StatusOK},
		{name: "suppressed", outcome: relay.OutcomeSuppressed, want: http.StatusNoContent},
		{name: "unknown user", err: relay.ErrUnknownUser, want: http.StatusNotFound},
		{name: "ignored", err: relay.ErrIgnored, want: http.StatusForbidden},
		{name: "malformed", err: relay.ErrMalformed, want: http.StatusBadRequest},
		{name: "unknown group", err: fmt.Errorf("group 42: %w", relay.ErrUnknownGroup), want: http.StatusUnprocessableEntity},
		{name: "transient", err: fmt.Errorf("group lookup: %w", chat.ErrTransient), want: http.StatusBadGateway},
		{name: "delivery", err: fmt.Errorf("%w: boom", relay.ErrDelivery), want: http.StatusBadGateway},
		{name: "storage", err: fmt.Errorf("get subscription: disk I/O error"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter()
			tr.relay.outcome = tt.outcome
			tr.relay.eventErr = tt.err

			w := tr.do(jsonRequest(http.MethodPost, "/incoming/100", `{"name":"Bob","group_id":"42","text":"hi","attachments":[]}`))
			assert.Equal(t, tt.want, w.Code)
			if tt.want >= http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "disk")
			}
		})
	}
}

func TestEmail_Form(t *testing.T) {
	tr := newTestRouter()

	form := url.Values{
		"sender":        {"Bob+42@domain.com"},
		"recipient":     {"reply+42@mg.example.com"},
		"stripped-text": {"hello\n\nquoted"},
		"body-plain":    {"ignored"},
	}
	req := httptest.NewRequest(http.MethodPost, "/email", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := tr.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, relay.EmailReply{
		Sender:    "Bob+42@domain.com",
		Recipient: "reply+42@mg.example.com",
		Body:      "hello\n\nquoted",
	}, tr.relay.reply)
}

func TestEmail_JSONFallsBackToBodyPlain(t *testing.T) {
	tr := newTestRouter()

	w := tr.do(jsonRequest(http.MethodPost, "/email", `{"sender":"bob@domain.com","recipient":"42@mg.example.com","body-plain":"hi there"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hi there", tr.relay.reply.Body)
}

func TestEmail_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "unknown sender", err: relay.ErrUnknownSender, want: http.StatusNotAcceptable},
		{name: "malformed", err: relay.ErrMalformed, want: http.StatusBadRequest},
		{name: "ignored", err: relay.ErrIgnored, want: http.StatusForbidden},
		{name: "unauthorized", err: fmt.Errorf("post message: %w", chat.ErrUnauthorized), want: http.StatusNotAcceptable},
		{name: "group gone", err: fmt.Errorf("post message: %w", chat.ErrNotFound), want: http.StatusNotAcceptable},
		{name: "transient", err: fmt.Errorf("post message: %w", chat.ErrTransient), want: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter()
			tr.relay.replyErr = tt.err

			w := tr.do(jsonRequest(http.MethodPost, "/email", `{"sender":"a@b.c","recipient":"1@d.e","stripped-text":"x"}`))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSubscribe(t *testing.T) {
	tr := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/subscribe/42", nil)
	req.Header.Set("X-Access-Token", "tok")
	w := tr.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok", tr.subs.credential)
	assert.Equal(t, "42", tr.subs.groupID)

	var resp subscriptionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "100", resp.UserID)
	assert.False(t, resp.Expired)
	assert.Equal(t, "Your GroupMemail service will expire on 31 March 2024.", resp.Message)
}

func TestSubscribe_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "no credential", err: subs.ErrNoCredential, want: http.StatusUnauthorized},
		{name: "rejected credential", err: fmt.Errorf("identify user: %w", chat.ErrUnauthorized), want: http.StatusUnauthorized},
		{name: "no email", err: subs.ErrNoEmail, want: http.StatusUnprocessableEntity},
		{name: "group gone", err: fmt.Errorf("create bot: %w", chat.ErrNotFound), want: http.StatusNotFound},
		{name: "transient", err: fmt.Errorf("create bot: %w", chat.ErrTransient), want: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter()
			tr.subs.err = tt.err

			w := tr.do(httptest.NewRequest(http.MethodPost, "/subscribe/42?access_token=tok", nil))
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, "tok", tr.subs.credential)
		})
	}
}

func TestUnsubscribe(t *testing.T) {
	tr := newTestRouter()

	w := tr.do(httptest.NewRequest(http.MethodPost, "/unsubscribe/42?access_token=tok", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":2}`, w.Body.String())
}

func TestStatus_NoSubscription(t *testing.T) {
	tr := newTestRouter()
	tr.subs.sub = nil

	w := tr.do(httptest.NewRequest(http.MethodGet, "/status?access_token=tok", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"100","name":"Alice","message":"Subscribe to a group to get free service for 30 days."}`, w.Body.String())
}

func TestExtend(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		body     string
		want     int
		wantDays int
	}{
		{name: "default period", secret: "s3cret", body: `{"user_id":"100"}`, want: http.StatusOK, wantDays: subs.PaymentDays},
		{name: "explicit days", secret: "s3cret", body: `{"user_id":"100","days":30}`, want: http.StatusOK, wantDays: 30},
		{name: "wrong secret", secret: "nope", body: `{"user_id":"100"}`, want: http.StatusForbidden},
		{name: "missing user", secret: "s3cret", body: `{"days":30}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter()

			req := jsonRequest(http.MethodPost, "/billing/extend", tt.body)
			req.Header.Set("X-Billing-Secret", tt.secret)
			w := tr.do(req)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.wantDays, tr.subs.days)
		})
	}
}

func TestExtend_UnknownUser(t *testing.T) {
	tr := newTestRouter()
	tr.subs.err = fmt.Errorf("extend subscription: %w", subs.ErrNotFound)

	req := jsonRequest(http.MethodPost, "/billing/extend", `{"user_id":"nope"}`)
	req.Header.Set("X-Billing-Secret", "s3cret")

	assert.Equal(t, http.StatusNotFound, tr.do(req).Code)
}

func TestResetCallbackURLs(t *testing.T) {
	tr := newTestRouter()

	w := tr.do(httptest.NewRequest(http.MethodPost, "/admin/reset-callback-urls?access_token=admin", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"users":3,"updated":1,"failed":0}`, w.Body.String())

	tr.maintenance.err = maintenance.ErrForbidden
	w = tr.do(httptest.NewRequest(http.MethodPost, "/admin/reset-callback-urls?access_token=user", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminUserRoutes(t *testing.T) {
	tr := newTestRouter()

	w := tr.do(jsonRequest(http.MethodPost, "/admin/users/100/ignore?access_token=admin", `{"ignored":true}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"100","ignored":true}`, w.Body.String())

	w = tr.do(jsonRequest(http.MethodPost, "/admin/users/100/ignore?access_token=admin", `{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = tr.do(jsonRequest(http.MethodPost, "/admin/users/100/alt-emails?access_token=admin", `{"email":"alice.work@corp.example"}`))
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "100", tr.subs.extended)
	assert.Equal(t, "alice.work@corp.example", tr.subs.credential)
}

func TestAdminUserRoutes_Forbidden(t *testing.T) {
	tr := newTestRouter()
	tr.maintenance.adminErr = maintenance.ErrForbidden

	w := tr.do(jsonRequest(http.MethodPost, "/admin/users/100/ignore?access_token=user", `{"ignored":true}`))
	assert.Equal(t, http.StatusForbidden, w.Code)

	tr.maintenance.adminErr = fmt.Errorf("identify caller: %w", chat.ErrUnauthorized)
	w = tr.do(jsonRequest(http.MethodPost, "/admin/users/100/alt-emails?access_token=bad", `{"email":"x@y.z"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, tr.subs.extended)
}
