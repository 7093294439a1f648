package groupme

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupmemail/internal/stories/chat"
)

func newTestSession(t *testing.T, handler http.HandlerFunc) chat.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return c.WithCredential("tok")
}

func TestSession_Me(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get("X-Access-Token"))
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"response":{"id":"123","user_id":"123","name":"Alice","email":"Alice@Example.com","phone_number":null},"meta":{"code":200}}`))
	})

	me, err := s.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &chat.User{ID: "123", Name: "Alice", Email: "Alice@Example.com"}, me)
}

func TestSession_Me_NumericID(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"user_id":987,"name":"Bob","email":null}}`))
	})

	me, err := s.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "987", me.ID)
	assert.Empty(t, me.Email)
}

func TestSession_ErrorClasses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"meta":{"code":401,"errors":["unauthorized"]}}`, want: chat.ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, body: `{"meta":{"code":404,"errors":["not found"]}}`, want: chat.ErrNotFound},
		{name: "server error", status: http.StatusBadGateway, body: `<html>oops</html>`, want: chat.ErrTransient},
		{name: "malformed success", status: http.StatusOK, body: `{"response":`, want: chat.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := s.Group(context.Background(), "g1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSession_TransportErrorIsTransient(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 100*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := c.WithCredential("tok").PostMessage(context.Background(), "g1", "hi")
	assert.ErrorIs(t, err, chat.ErrTransient)
}

func TestSession_TransportErrorHidesCredential(t *testing.T) {
	const secret = "SECRET-TOKEN-123"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)

	var logs bytes.Buffer
	c := NewClient(srv.URL, time.Second, slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

	_, err := c.WithCredential(secret).Group(context.Background(), "42")
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrTransient)
	assert.NotContains(t, err.Error(), secret)
	assert.NotContains(t, logs.String(), secret)
}

func TestRedactToken(t *testing.T) {
	err := redactToken(&url.Error{Op: "Get", URL: "http://x/groups?token=abc", Err: io.EOF}, "abc")
	assert.NotContains(t, err.Error(), "abc")
	assert.ErrorIs(t, err, io.EOF)

	err = redactToken(errors.New("proxy said abc is bad"), "abc")
	assert.Equal(t, "proxy said REDACTED is bad", err.Error())
}

func TestSession_Group(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/groups/42", r.URL.Path)
		_, _ = w.Write([]byte(`{"response":{"id":"42","name":"Book Club","share_url":null,"members":[{"id":"1"}]}}`))
	})

	g, err := s.Group(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, &chat.Group{ID: "42", Name: "Book Club"}, g)
}

func TestSession_PostMessage(t *testing.T) {
	var text, guid string
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/groups/42/messages", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
			return decodeFields(d, map[string]*string{"text": &text, "source_guid": &guid})
		}))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"response":{"message":{"id":"m1"}}}`))
	})

	require.NoError(t, s.PostMessage(context.Background(), "42", "see you there"))
	assert.Equal(t, "see you there", text)
	assert.NotEmpty(t, guid)
}

func TestSession_Bots(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":[
			{"bot_id":"b1","group_id":"42","name":"GroupMemail","callback_url":"https://relay.example/incoming/7"},
			{"bot_id":"b2","group_id":"43","name":"Other","callback_url":null,"avatar_url":null}
		]}`))
	})

	bots, err := s.Bots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []chat.Bot{
		{ID: "b1", GroupID: "42", Name: "GroupMemail", CallbackURL: "https://relay.example/incoming/7"},
		{ID: "b2", GroupID: "43", Name: "Other"},
	}, bots)
}

func TestSession_CreateBot(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bots", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"bot":{"name":"GroupMemail","group_id":"42","callback_url":"https://relay.example/incoming/7"}}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"response":{"bot":{"bot_id":"b9","group_id":"42","name":"GroupMemail","callback_url":"https://relay.example/incoming/7"}}}`))
	})

	bot, err := s.CreateBot(context.Background(), "GroupMemail", "42", "https://relay.example/incoming/7")
	require.NoError(t, err)
	assert.Equal(t, "b9", bot.ID)
}

func TestSession_DestroyBot(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bots/destroy", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"bot_id":"b1"}`, string(body))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, s.DestroyBot(context.Background(), "b1"))
}
