package groupme

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/time/rate"

	"groupmemail/internal/metrics"
	"groupmemail/internal/stories/chat"
)

const (
	maxResponseBytes = 4 << 20
	tokenHeader      = "X-Access-Token"
)

// Client holds what is shared by every credential: transport, base URL and
// the application-wide rate limit.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithCredential scopes the API to one user's access token.
func (c *Client) WithCredential(token string) chat.Client {
	return &Session{client: c, token: token}
}

// Session is the platform API acting as a single user. It never retries.
type Session struct {
	client *Client
	token  string
}

func (s *Session) Me(ctx context.Context) (*chat.User, error) {
	resp, err := s.do(ctx, "me", http.MethodGet, "/users/me", nil)
	if err != nil {
		return nil, err
	}

	return decodeUser(resp)
}

func (s *Session) Group(ctx context.Context, groupID string) (*chat.Group, error) {
	resp, err := s.do(ctx, "group", http.MethodGet, "/groups/"+url.PathEscape(groupID), nil)
	if err != nil {
		return nil, err
	}

	return decodeGroup(resp)
}

func (s *Session) PostMessage(ctx context.Context, groupID, text string) error {
	body := encodeMessage(text)
	_, err := s.do(ctx, "post_message", http.MethodPost, "/groups/"+url.PathEscape(groupID)+"/messages", body)
	return err
}

func (s *Session) Bots(ctx context.Context) ([]chat.Bot, error) {
	resp, err := s.do(ctx, "bots", http.MethodGet, "/bots", nil)
	if err != nil {
		return nil, err
	}

	return decodeBots(resp)
}

func (s *Session) CreateBot(ctx context.Context, name, groupID, callbackURL string) (*chat.Bot, error) {
	body := encodeBot(chat.Bot{Name: name, GroupID: groupID, CallbackURL: callbackURL})
	resp, err := s.do(ctx, "create_bot", http.MethodPost, "/bots", body)
	if err != nil {
		return nil, err
	}

	return decodeCreatedBot(resp)
}

func (s *Session) UpdateBot(ctx context.Context, bot chat.Bot) error {
	body := encodeBot(bot)
	_, err := s.do(ctx, "update_bot", http.MethodPost, "/bots/"+url.PathEscape(bot.ID), body)
	return err
}

func (s *Session) DestroyBot(ctx context.Context, botID string) error {
	body := encodeBotID(botID)
	_, err := s.do(ctx, "destroy_bot", http.MethodPost, "/bots/destroy", body)
	return err
}

// do performs one call and classifies its failure. The returned bytes are
// the "response" member of the envelope, nil when absent or null.
func (s *Session) do(ctx context.Context, endpoint, method, path string, body []byte) ([]byte, error) {
	c := s.client

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &transientError{op: endpoint, err: errors.Wrap(err, "rate limiting")}
	}

	// the credential travels as a header so it never appears in a URL,
	// which *url.Error would copy into error text and logs
	u := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, &transientError{op: endpoint, err: errors.Wrap(err, "build request")}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(tokenHeader, s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ChatAPIRequests.WithLabelValues(endpoint, "transport_error").Inc()
		err = redactToken(err, s.token)
		c.logger.Warn("GroupMe request failed", "endpoint", endpoint, "error", err)
		return nil, &transientError{op: endpoint, err: err}
	}
	defer resp.Body.Close()

	metrics.ChatAPIRequests.WithLabelValues(endpoint, fmt.Sprint(resp.StatusCode)).Inc()
	metrics.ChatAPIDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &transientError{op: endpoint, err: errors.Wrap(err, "read body")}
	}

	env, decodeErr := decodeEnvelope(raw)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{
			Op:     endpoint,
			Status: resp.StatusCode,
			Errors: env.errors,
		}
		c.logger.Debug("GroupMe API error",
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"errors", env.errors)
		return nil, apiErr
	}

	if decodeErr != nil {
		return nil, &transientError{op: endpoint, err: decodeErr}
	}

	return env.response, nil
}

// redactToken strips the URL from transport errors and masks any copy of the
// credential a proxy or redirect might have put into the message.
func redactToken(err error, token string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = errors.Wrap(urlErr.Err, urlErr.Op)
	}
	if token != "" && strings.Contains(err.Error(), token) {
		return errors.New(strings.ReplaceAll(err.Error(), token, "REDACTED"))
	}
	return err
}
