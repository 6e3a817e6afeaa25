// Package remote implements the client for the remote configuration
// backend. Documents are addressed by opaque user identity; the client is
// only invoked by the sync engine at lifecycle transition points, never on
// a timer.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/jemch/startpage/internal/types"
)

// ErrorKind classifies remote failures
type ErrorKind string

const (
	Unauthorized ErrorKind = "unauthorized"
	Transient    ErrorKind = "transient"
	Rejected     ErrorKind = "rejected"
)

// Error is returned when a remote operation fails after its retry budget
// is exhausted
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote: %s (status %d)", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("remote: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Kind extracts the error kind from an error chain, or "" if err is not a
// remote error.
func Kind(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

const defaultTimeout = 10 * time.Second

// retryDelay is the pause before the single automatic retry on a
// transient failure.
var retryDelay = 500 * time.Millisecond

// Client talks to the remote configuration store over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Options holds configuration for Client initialization
type Options struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a remote store client
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("component", "remote_store")),
	}
}

// Fetch retrieves the user's remote document. A nil document with a nil
// error means the user has no remote configuration yet.
func (c *Client) Fetch(ctx context.Context, userID string) (*types.Document, error) {
	var doc *types.Document

	err := c.withRetry(ctx, "fetch", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.documentURL(userID), nil)
		if err != nil {
			return &Error{Kind: Rejected, Err: err}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &Error{Kind: Transient, Err: err}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			doc = nil
			return nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return &Error{Kind: Unauthorized, StatusCode: resp.StatusCode}
		case resp.StatusCode >= 500:
			return &Error{Kind: Transient, StatusCode: resp.StatusCode}
		case resp.StatusCode != http.StatusOK:
			return &Error{Kind: Rejected, StatusCode: resp.StatusCode}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Error{Kind: Transient, Err: err}
		}
		var d types.Document
		if err := json.Unmarshal(body, &d); err != nil {
			return &Error{Kind: Rejected, Err: fmt.Errorf("failed to unmarshal remote document: %w", err)}
		}
		doc = &d
		return nil
	})
	if err != nil {
		return nil, err
	}

	if doc != nil {
		c.logger.Debug("Fetched remote document",
			zap.String("user_id", userID),
			zap.Int("schema_version", doc.SchemaVersion))
	} else {
		c.logger.Debug("No remote document for user", zap.String("user_id", userID))
	}
	return doc, nil
}

// Push uploads a document, overwriting the user's remote copy
func (c *Client) Push(ctx context.Context, userID string, doc *types.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return &Error{Kind: Rejected, Err: fmt.Errorf("failed to marshal document: %w", err)}
	}

	err = c.withRetry(ctx, "push", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.documentURL(userID), bytes.NewReader(payload))
		if err != nil {
			return &Error{Kind: Rejected, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &Error{Kind: Transient, Err: err}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return &Error{Kind: Unauthorized, StatusCode: resp.StatusCode}
		case resp.StatusCode >= 500:
			return &Error{Kind: Transient, StatusCode: resp.StatusCode}
		case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent:
			return &Error{Kind: Rejected, StatusCode: resp.StatusCode}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Debug("Pushed document to remote",
		zap.String("user_id", userID),
		zap.Int("bytes", len(payload)))
	return nil
}

// withRetry runs op, retrying exactly once if the failure is transient
func (c *Client) withRetry(ctx context.Context, name string, op func() error) error {
	err := op()
	if err == nil || Kind(err) != Transient {
		return err
	}

	c.logger.Warn("Transient remote failure, retrying once",
		zap.String("operation", name),
		zap.Error(err))

	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return &Error{Kind: Transient, Err: ctx.Err()}
	}
	return op()
}

func (c *Client) documentURL(userID string) string {
	return fmt.Sprintf("%s/configurations/%s", c.baseURL, url.PathEscape(userID))
}
