// Package client calls the roster HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Type       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("roster api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("roster api: %s (status %d)", e.Detail, e.StatusCode)
}

// Activity mirrors one entry of GET /activities.
type Activity struct {
	Name            string   `json:"-"`
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// Client talks to a roster API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Client. A nil httpClient gets a 10s timeout default.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// ListActivities returns the roster in server order.
func (c *Client) ListActivities(ctx context.Context) ([]Activity, error) {
	resp, err := c.do(ctx, http.MethodGet, "/activities")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeActivities(resp.Body)
}

// SignUp enrolls email in activity and returns the server's confirmation message.
func (c *Client) SignUp(ctx context.Context, activity, email string) (string, error) {
	path := "/activities/" + url.PathEscape(activity) + "/signup?email=" + url.QueryEscape(email)
	return c.message(ctx, http.MethodPost, path)
}

// Unregister withdraws email from activity and returns the server's confirmation message.
func (c *Client) Unregister(ctx context.Context, activity, email string) (string, error) {
	path := "/activities/" + url.PathEscape(activity) + "/participants/" + url.PathEscape(email)
	return c.message(ctx, http.MethodDelete, path)
}

func (c *Client) message(ctx context.Context, method, path string) (string, error) {
	resp, err := c.do(ctx, method, path)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return body.Message, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Type   string `json:"type"`
			Detail string `json:"detail"`
		}
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil && json.Unmarshal(data, &body) == nil {
			apiErr.Type = body.Type
			apiErr.Detail = body.Detail
		}
		return nil, apiErr
	}
	return resp, nil
}

// decodeActivities reads the name-keyed object while keeping the server's key order.
func decodeActivities(r io.Reader) ([]Activity, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode activities: expected object, got %v", tok)
	}

	var out []Activity
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode activities: %w", err)
		}
		name, _ := keyTok.(string)
		var activity Activity
		if err := dec.Decode(&activity); err != nil {
			return nil, fmt.Errorf("decode activity %q: %w", name, err)
		}
		activity.Name = name
		out = append(out, activity)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	return out, nil
}
