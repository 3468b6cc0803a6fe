// Package client talks to a walltok server over HTTP. A Client can back a
// feed session in another process, behaving like one more tab on the same
// shared store.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fedragon/walltok/internal/admin"
	"github.com/fedragon/walltok/internal/broadcast"
	"github.com/fedragon/walltok/internal/models"

	"go.uber.org/zap"
)

// Error is a non-2xx response.
type Error struct {
	Status int    `json:"status"`
	Reason string `json:"reason,omitempty"`
	Msg    string `json:"error"`
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Reason, e.Msg)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Msg)
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func New(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

func (c *Client) FetchAll(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/wallpapers", nil, &snap)
	return snap, err
}

func (c *Client) FetchCategory(ctx context.Context, category string) (models.Snapshot, error) {
	var snap models.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/wallpapers?category="+url.QueryEscape(category), nil, &snap)
	return snap, err
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var body struct {
		Categories []string `json:"categories"`
	}
	err := c.do(ctx, http.MethodGet, "/api/categories", nil, &body)
	return body.Categories, err
}

// Publish runs the server's publish pipeline on a remote locator.
func (c *Client) Publish(ctx context.Context, d admin.Draft) (models.Wallpaper, error) {
	var created models.Wallpaper
	err := c.do(ctx, http.MethodPost, "/api/wallpapers", d, &created)
	return created, err
}

func (c *Client) Update(ctx context.Context, id string, patch models.Patch) error {
	return c.do(ctx, http.MethodPatch, "/api/wallpapers/"+url.PathEscape(id), patch, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/wallpapers/"+url.PathEscape(id), nil, nil)
}

// Subscribe opens the server's event stream. The returned channel closes when
// ctx is done or the stream ends.
func (c *Client) Subscribe(ctx context.Context) (<-chan broadcast.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sync", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeError(resp)
	}

	messages := make(chan broadcast.Message)
	go c.readEvents(ctx, resp.Body, messages)

	return messages, nil
}

func (c *Client) readEvents(ctx context.Context, body io.ReadCloser, out chan<- broadcast.Message) {
	defer close(out)
	defer func() { _ = body.Close() }()

	scanner := bufio.NewScanner(body)
	var data bytes.Buffer

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}

			m, err := broadcast.Decode(data.Bytes())
			data.Reset()
			if err != nil {
				c.logger.Warn("Skipping malformed event", zap.Error(err))
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- m:
			}
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn("Event stream interrupted", zap.Error(err))
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cannot decode %s %s response: %w", method, path, err)
	}

	return nil
}

func decodeError(resp *http.Response) error {
	e := &Error{Status: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(e); err != nil || e.Msg == "" {
		e.Msg = http.StatusText(resp.StatusCode)
	}
	e.Status = resp.StatusCode

	return e
}
