package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	createRoomPath   = "/Chat/CreateRoomId"
	activateRoomPath = "/Chat/ActiveRoomId"
)

// APIError is a non-2xx answer from the provisioning API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// Client provides access to the room provisioning API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new provisioning client.
// baseURL is the server root, e.g. "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// CreateRoom asks the server for a fresh room identifier.
func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	var resp CreateRoomResponse
	if err := c.post(ctx, createRoomPath, nil, &resp); err != nil {
		return "", err
	}
	if resp.RoomID == "" {
		return "", errors.New("create room: empty room id in response")
	}
	return resp.RoomID, nil
}

// ActivateRoom marks roomID as in use. It must succeed before joining.
func (c *Client) ActivateRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return errors.New("activate room: empty room id")
	}
	var resp ActivateRoomResponse
	return c.post(ctx, activateRoomPath, ActivateRoomRequest{RoomID: roomID}, &resp)
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

func (c *Client) do(req *http.Request, dest any) error {
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
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
