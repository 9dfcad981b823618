// Package rest is the request/response fallback path used when the live
// transport is unavailable. It consumes the messaging API; it owns none of
// the data it returns.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client calls the messaging endpoints of the backend API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a REST client. baseURL is the API root, e.g.
// "https://host/api"; token is the bearer token for every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient overrides the underlying HTTP client (tests, custom
// transports).
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// DirectMessages fetches the ordered message history with a counterparty.
func (c *Client) DirectMessages(ctx context.Context, counterpartyID int) ([]Message, error) {
	var resp []Message
	if err := c.get(ctx, "/messaging/direct/"+strconv.Itoa(counterpartyID)+"/", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SendDirectMessage posts a direct message and returns the server-confirmed
// message, id included.
func (c *Client) SendDirectMessage(ctx context.Context, counterpartyID int, content string) (*Message, error) {
	var resp Message
	path := "/messaging/direct/" + strconv.Itoa(counterpartyID) + "/"
	if err := c.post(ctx, path, SendMessageRequest{Content: content}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkRead marks every message from the counterparty as read.
func (c *Client) MarkRead(ctx context.Context, counterpartyID int) error {
	path := "/messaging/direct/" + strconv.Itoa(counterpartyID) + "/mark-read/"
	return c.post(ctx, path, nil, nil)
}

// UnreadCounts fetches the bulk mapping of counterparty id to unread count.
// Counterparties with zero unread messages are omitted by the server.
func (c *Client) UnreadCounts(ctx context.Context) (map[int]int, error) {
	var resp map[string]int
	if err := c.get(ctx, "/messaging/unread-counts/", &resp); err != nil {
		return nil, err
	}
	counts := make(map[int]int, len(resp))
	for key, n := range resp {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("unread counts: bad counterparty key %q", key)
		}
		counts[id] = n
	}
	return counts, nil
}

// Participants lists the users the local user may message.
func (c *Client) Participants(ctx context.Context) ([]Participant, error) {
	var resp []Participant
	if err := c.get(ctx, "/messaging/participants/", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("api error (status %d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("http error: %s (status %d)", string(body), resp.StatusCode)
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
