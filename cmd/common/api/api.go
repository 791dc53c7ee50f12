// Package api is the HTTP client for the room backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Track is one entry of a room playlist. Tracks are immutable once fetched;
// the client only ever replaces its cached copy wholesale.
type Track struct {
	TrackID    int    `json:"track_id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	CoverURI   string `json:"cover_uri"` // base path without scheme/size suffix
	TrackURL   string `json:"track_url"`
	Position   int    `json:"position"`
	DurationMs int    `json:"duration_ms,omitempty"`
}

// Duration returns the track duration, 0 when the backend didn't send one.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMs) * time.Millisecond
}

// NetworkError is returned for transport failures, non-2xx responses and
// backend-level rejections (success:false payloads).
type NetworkError struct {
	Endpoint string
	Status   int    // 0 for transport failures
	Message  string // server-provided message, if any
	Err      error  // underlying transport error, if any
}

func (e *NetworkError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Client talks to the room backend.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		UserAgent:  "auxroom",
	}
}

// WebsocketURL derives the sync channel URL from the base URL
// (http -> ws, https -> wss, path /ws).
func (c *Client) WebsocketURL() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: path, Err: err}
	}
	return resp, nil
}

// getJSON performs a GET and decodes the 2xx response body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NetworkError{Endpoint: path, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Endpoint: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Tracks fetches the ordered playlist for a room.
func (c *Client) Tracks(ctx context.Context, roomCode string) ([]Track, error) {
	var tracks []Track
	query := url.Values{"room_code": {roomCode}}
	if err := c.getJSON(ctx, "/api/tracks", query, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// TrackIDs fetches the id projection of the playlist, in playlist order.
// This is the cheap change-detection call driven by the 5 second poll.
func (c *Client) TrackIDs(ctx context.Context, roomCode string) ([]int, error) {
	var ids []int
	query := url.Values{"room_code": {roomCode}}
	if err := c.getJSON(ctx, "/api/tracks/all", query, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteTrack removes a track from the room playlist. Both non-2xx responses
// and success:false payloads are failures; the server message is surfaced.
func (c *Client) DeleteTrack(ctx context.Context, trackID int, roomCode string) error {
	const path = "/api/tracks/delete"
	resp, err := c.do(ctx, http.MethodPost, path, nil, map[string]any{
		"track_id":  trackID,
		"room_code": roomCode,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	// The body is informative on failures too, so decode before the status check.
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NetworkError{Endpoint: path, Status: resp.StatusCode, Message: result.Message}
	}
	if decodeErr != nil {
		return &NetworkError{Endpoint: path, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if !result.Success {
		message := result.Message
		if message == "" {
			message = "delete rejected"
		}
		return &NetworkError{Endpoint: path, Status: resp.StatusCode, Message: message}
	}
	return nil
}

// AddTrack submits a track URL to the room playlist.
func (c *Client) AddTrack(ctx context.Context, trackURL, roomCode string) error {
	const path = "/add-track"
	resp, err := c.do(ctx, http.MethodPost, path, nil, map[string]any{
		"track_url": trackURL,
		"room_code": roomCode,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NetworkError{Endpoint: path, Status: resp.StatusCode}
	}
	return nil
}

// MoveTrack changes a track's position within the room playlist.
func (c *Client) MoveTrack(ctx context.Context, trackID, position int, roomCode string) error {
	const path = "/api/tracks/changeposition"
	resp, err := c.do(ctx, http.MethodPost, path, nil, map[string]any{
		"track_id":  trackID,
		"position":  position,
		"room_code": roomCode,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NetworkError{Endpoint: path, Status: resp.StatusCode}
	}
	return nil
}

// ResolveTrackURL requests a fresh playable URL for a track. This is the
// fallback path when a track's primary media location fails to load.
func (c *Client) ResolveTrackURL(ctx context.Context, trackID int) (string, error) {
	var result struct {
		TrackURL string `json:"track_url"`
	}
	query := url.Values{"trackID": {strconv.Itoa(trackID)}}
	if err := c.getJSON(ctx, "/api/track", query, &result); err != nil {
		return "", err
	}
	if result.TrackURL == "" {
		return "", &NetworkError{Endpoint: "/api/track", Message: "no playable url for track"}
	}
	return result.TrackURL, nil
}

// CreateRoom creates a new room and returns its code.
func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	var result struct {
		Code string `json:"code"`
	}
	if err := c.getJSON(ctx, "/api/room/create", nil, &result); err != nil {
		return "", err
	}
	if result.Code == "" {
		return "", &NetworkError{Endpoint: "/api/room/create", Message: "no room code in response"}
	}
	return result.Code, nil
}

// JoinRoom joins an existing room. A room_id in the response signals success.
func (c *Client) JoinRoom(ctx context.Context, roomCode string) error {
	const path = "/api/room/join"
	resp, err := c.do(ctx, http.MethodPost, path, nil, map[string]any{
		"room_code": roomCode,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NetworkError{Endpoint: path, Status: resp.StatusCode}
	}

	var result struct {
		RoomID *int64 `json:"room_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &NetworkError{Endpoint: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.RoomID == nil {
		return &NetworkError{Endpoint: path, Message: "room not found"}
	}
	return nil
}

// FetchMedia downloads track media bytes from an absolute URL.
func (c *Client) FetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: mediaURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{Endpoint: mediaURL, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Endpoint: mediaURL, Err: err}
	}
	return data, nil
}
