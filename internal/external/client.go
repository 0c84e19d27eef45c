// Package external talks to the HTTP application that owns matches,
// lobbies, and users: the hub reads match config from it, pushes
// debounced timeline snapshots back, and notifies it of join/leave
// events. The hub treats it as eventually consistent.
package external

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/outpoot/editmash-hub/internal/wire"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) authedRequest(method, path string, body interface{}) (*http.Request, error) {
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("external: build url for %s: %w", path, err)
	}

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("external: marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("external: new request %s %s: %w", method, u, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// FetchConfig retrieves a match's constraint configuration. The room
// caches a successful result for its lifetime; after a failed fetch it
// calls this again on its next clip mutation.
func (c *Client) FetchConfig(matchID string) (wire.MatchConfig, error) {
	req, err := c.authedRequest(http.MethodGet, "/api/matches/"+matchID, nil)
	if err != nil {
		return wire.MatchConfig{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wire.MatchConfig{}, fmt.Errorf("external: fetch config for %s: %w", matchID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return wire.MatchConfig{}, fmt.Errorf("external: fetch config for %s: status %d", matchID, resp.StatusCode)
	}

	var out struct {
		Config wire.MatchConfig `json:"config"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return wire.MatchConfig{}, fmt.Errorf("external: decode config for %s: %w", matchID, err)
	}
	return out.Config, nil
}

// FetchTimeline retrieves a match's current timeline, used to seed a room's
// cache the first time a match is joined.
func (c *Client) FetchTimeline(matchID string) (wire.Timeline, error) {
	req, err := c.authedRequest(http.MethodGet, "/api/matches/"+matchID+"/timeline", nil)
	if err != nil {
		return wire.Timeline{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wire.Timeline{}, fmt.Errorf("external: fetch timeline for %s: %w", matchID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return wire.Timeline{}, fmt.Errorf("external: fetch timeline for %s: status %d", matchID, resp.StatusCode)
	}

	var out struct {
		Timeline wire.Timeline `json:"timeline"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return wire.Timeline{}, fmt.Errorf("external: decode timeline for %s: %w", matchID, err)
	}
	return out.Timeline, nil
}

// PatchTimeline pushes a debounced snapshot of the authoritative timeline.
func (c *Client) PatchTimeline(matchID string, timeline wire.Timeline, editCount uint64) error {
	body := struct {
		Timeline  wire.Timeline `json:"timeline"`
		EditCount uint64        `json:"editCount"`
	}{Timeline: timeline, EditCount: editCount}

	req, err := c.authedRequest(http.MethodPatch, "/api/matches/"+matchID, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("external: patch timeline for %s: %w", matchID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("external: patch timeline for %s: status %d", matchID, resp.StatusCode)
	}
	return nil
}

// NotifyJoin and NotifyLeave inform the external app of membership churn
// so it can track presence independent of the hub's own liveness.
func (c *Client) NotifyJoin(matchID, userID string) error {
	return c.postUserEvent(matchID, userID, "join")
}

func (c *Client) NotifyLeave(matchID, userID string) error {
	return c.postUserEvent(matchID, userID, "leave")
}

func (c *Client) postUserEvent(matchID, userID, action string) error {
	req, err := c.authedRequest(http.MethodPost, "/api/matches/"+matchID+"/"+action, struct {
		UserID string `json:"userId"`
	}{UserID: userID})
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("external: notify %s for %s/%s: %w", action, matchID, userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("external: notify %s for %s/%s: status %d", action, matchID, userID, resp.StatusCode)
	}
	return nil
}

// FetchLobbies lists lobbies for the lobby subscription bridge.
func (c *Client) FetchLobbies() ([]wire.LobbySummary, error) {
	req, err := c.authedRequest(http.MethodGet, "/api/lobbies", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("external: fetch lobbies: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("external: fetch lobbies: status %d", resp.StatusCode)
	}

	var out struct {
		Lobbies []wire.LobbySummary `json:"lobbies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("external: decode lobbies: %w", err)
	}
	return out.Lobbies, nil
}
