// Package mailgun sends email through the Mailgun HTTP API.
package mailgun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"groupmemail/internal/metrics"
	"groupmemail/internal/stories/mail"
)

type Client struct {
	endpoint   string
	apiKey     string
	sender     string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(apiURL, domain, apiKey, sender string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimSuffix(apiURL, "/") + "/" + url.PathEscape(domain) + "/messages",
		apiKey:     apiKey,
		sender:     sender,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Send implements mail.Sender.
func (c *Client) Send(ctx context.Context, msg mail.Message) error {
	form := url.Values{
		"from":    {c.sender},
		"to":      {msg.To},
		"subject": {msg.Subject},
	}
	if msg.HTML != "" {
		form.Set("html", msg.HTML)
	}
	if msg.Text != "" {
		form.Set("text", msg.Text)
	}
	if msg.ReplyTo != "" {
		form.Set("h:Reply-To", msg.ReplyTo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.EmailsSent.WithLabelValues("error").Inc()
		return errors.Wrap(err, "send email")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.EmailsSent.WithLabelValues("rejected").Inc()
		c.logger.Warn("Mailgun rejected message",
			"status", resp.StatusCode,
			"to", msg.To,
			"body", string(body))
		return fmt.Errorf("mailgun: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	metrics.EmailsSent.WithLabelValues("sent").Inc()
	c.logger.Debug("Email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}
