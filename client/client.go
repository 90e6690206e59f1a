// Package client talks to a WaveDeck server over HTTP. It is the playlist source
// for a player.Controller and backs the `wavedeck tracks` commands.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"WaveDeck/apperr"
	"WaveDeck/core/catalog"
	"WaveDeck/model"

	"github.com/gorilla/websocket"
)

// Client is a WaveDeck API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL, e.g. http://localhost:8080.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// SetTimeout sets the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StreamURL is the location a media resource loads for trackID.
func (c *Client) StreamURL(trackID string) string {
	return c.baseURL + "/tracks/" + url.PathEscape(trackID) + "/stream"
}

// Tracks lists the catalog in upload order.
func (c *Client) Tracks(ctx context.Context) ([]*model.Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tracks", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var tracks []*model.Track
	if err := c.doJSON(req, http.StatusOK, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// Upload sends one audio file as the multipart field "audio".
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader, contentType string) (*model.Track, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tracks/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var track model.Track
	if err := c.doJSON(req, http.StatusCreated, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// Delete removes a track. Unknown ids yield a NotFound error.
func (c *Client) Delete(ctx context.Context, trackID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/tracks/"+url.PathEscape(trackID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.doJSON(req, http.StatusOK, nil)
}

// Stream opens the audio of trackID. rangeHeader is sent verbatim when non-empty.
// The caller closes the response body; the status is 200 or 206.
func (c *Client) Stream(ctx context.Context, trackID, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.StreamURL(trackID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.IO(err, "Request failed")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// FetchRange reads bytes [start, end] of trackID.
func (c *Client) FetchRange(ctx context.Context, trackID string, start, end int64) ([]byte, error) {
	resp, err := c.Stream(ctx, trackID, fmt.Sprintf("bytes=%d-%d", start, end))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.IO(err, "Failed to read stream")
	}
	return data, nil
}

// Subscribe follows the catalog event feed until ctx ends or the connection drops,
// calling fn for every message.
func (c *Client) Subscribe(ctx context.Context, fn func(catalog.Message)) error {
	wsURL := c.baseURL + "/tracks/events"
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var msg catalog.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("event feed: %w", err)
		}
		fn(msg)
	}
}

func (c *Client) doJSON(req *http.Request, wantStatus int, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.IO(err, "Request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError turns an error response into an apperr.Error of the matching kind.
func decodeError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		body.Message = fmt.Sprintf("server returned %s", resp.Status)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return apperr.NotFound("%s", body.Message)
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return apperr.Validation("%s", body.Message)
	case http.StatusRequestedRangeNotSatisfiable:
		return apperr.RangeNotSatisfiable("%s", body.Message)
	default:
		return apperr.IO(fmt.Errorf("status %d", resp.StatusCode), "%s", body.Message)
	}
}
