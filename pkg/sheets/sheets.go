// Package sheets appends result rows to a spreadsheet through a script
// webhook. The webhook stores the screenshot and answers with its link.
package sheets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	// maxResponse bounds how much of a response body is read.
	maxResponse = 1 << 20
)

var (
	// ErrNotConfigured is returned when no webhook URL is set.
	ErrNotConfigured = errors.New("sheet webhook url not configured")
	// ErrSendFailed wraps every rejection reported by the webhook.
	ErrSendFailed = errors.New("sheet append failed")
)

// Payload is the JSON body understood by the webhook.
type Payload struct {
	Action       string `json:"action"`
	Row          []any  `json:"row"`
	ImageDataURL string `json:"imageDataURL,omitempty"`
}

type response struct {
	ImageURL string `json:"imageUrl"`
	Error    string `json:"error"`
}

// Client posts rows to one webhook.
type Client struct {
	url        string
	httpClient *http.Client
	// wait is replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewClient returns a client for url. An empty url yields a client whose
// Append always fails with ErrNotConfigured.
func NewClient(url string) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: defaultTimeout},
		wait:       sleep,
	}
}

// Configured reports whether a webhook URL is set.
func (c *Client) Configured() bool { return c != nil && c.url != "" }

// DataURL encodes an image file as a data URL.
func DataURL(mime string, data []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Append sends one row with its screenshot and returns the link of the
// stored image, which may be empty. Rate limited requests are retried,
// honouring Retry-After.
func (c *Client) Append(ctx context.Context, row []any, imageDataURL string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	data, err := json.Marshal(Payload{Action: "appendRow", Row: row, ImageDataURL: imageDataURL})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("request failed: %w", err)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			if err := c.wait(ctx, retryAfter(resp.Header.Get("Retry-After"))); err != nil {
				return "", err
			}
			continue
		}

		// Non-JSON bodies are tolerated: the script may answer with HTML.
		var r response
		_ = json.Unmarshal(body, &r)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if r.Error != "" {
				return "", fmt.Errorf("%w: %s", ErrSendFailed, r.Error)
			}
			return "", fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
		}
		if r.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrSendFailed, r.Error)
		}
		return r.ImageURL, nil
	}
	return "", fmt.Errorf("%w: rate limited after %d attempts", ErrSendFailed, maxRetries)
}

func retryAfter(v string) time.Duration {
	if v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
