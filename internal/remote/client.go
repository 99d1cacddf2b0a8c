// Package remote talks to the account/company schedule service: it fetches
// and stores schedules and appends usage records.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"breaktime/internal/auth"
	"breaktime/internal/config"
	"breaktime/internal/logging"
	"breaktime/internal/schedule"

	"github.com/cenkalti/backoff/v5"
)

var (
	// ErrNotFound is returned when no schedule exists for the account or organization.
	ErrNotFound = errors.New("remote schedule not found")

	// ErrUnauthorized is returned when the session token is rejected.
	ErrUnauthorized = errors.New("remote rejected credentials")
)

// UsageRecord is one appended slice of break time.
type UsageRecord struct {
	ID              string    `json:"id"`
	DurationSeconds int64     `json:"durationSeconds"`
	CompletedAt     time.Time `json:"completedAt"`
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned %d", e.Code)
	}
	return fmt.Sprintf("remote returned %d: %s", e.Code, e.Body)
}

// Client is the HTTP client of the schedule service.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	attempts uint
	initial  time.Duration
	logger   *slog.Logger
}

// New creates a client from the remote config section.
func New(cfg config.RemoteConfig, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("remote base_url is not configured")
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base_url %q must be http or https", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.RetryAttempts
	if attempts < 0 {
		attempts = 0
	}
	return &Client{
		baseURL:  u,
		http:     &http.Client{Timeout: timeout},
		attempts: uint(attempts) + 1,
		initial:  500 * time.Millisecond,
		logger:   logging.Component(logger, "remote"),
	}, nil
}

// FetchSchedule returns the authoritative schedule for the session: the
// organization's when the account belongs to one, the account's otherwise.
func (c *Client) FetchSchedule(ctx context.Context, sess auth.Session) (schedule.Config, error) {
	var cfg schedule.Config
	err := c.do(ctx, sess, http.MethodGet, schedulePath(sess), nil, &cfg)
	return cfg, err
}

// PutSchedule replaces the schedule in the session's scope.
func (c *Client) PutSchedule(ctx context.Context, sess auth.Session, cfg schedule.Config) error {
	return c.do(ctx, sess, http.MethodPut, schedulePath(sess), cfg, nil)
}

// AppendUsage appends one usage record to the account's log.
func (c *Client) AppendUsage(ctx context.Context, sess auth.Session, rec UsageRecord) error {
	return c.do(ctx, sess, http.MethodPost, "/v1/accounts/"+url.PathEscape(sess.AccountID)+"/usage", rec, nil)
}

func schedulePath(sess auth.Session) string {
	if !sess.Personal() {
		return "/v1/organizations/" + url.PathEscape(sess.OrganizationID) + "/schedule"
	}
	return "/v1/accounts/" + url.PathEscape(sess.AccountID) + "/schedule"
}

func (c *Client) do(ctx context.Context, sess auth.Session, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initial

	op := func() (struct{}, error) {
		err := c.once(ctx, sess, method, path, body, out)
		var se *StatusError
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnauthorized):
			return struct{}{}, backoff.Permanent(err)
		case errors.As(err, &se) && se.Code < 500 && se.Code != http.StatusTooManyRequests:
			return struct{}{}, backoff.Permanent(err)
		}
		c.logger.Debug("remote call failed, retrying", "method", method, "path", path, "error", err)
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(c.attempts),
	)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, sess auth.Session, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
