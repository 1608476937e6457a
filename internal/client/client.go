package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"alertcast/internal/api"
)

// ErrDaemonUnavailable indicates the daemon API could not be reached.
var ErrDaemonUnavailable = errors.New("daemon API unavailable")

// ErrNotFound indicates the addressed resource does not exist.
var ErrNotFound = errors.New("not found")

// Client talks to a running daemon over its HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New builds a client for the given bind address. The address may omit the
// scheme; plain host:port is assumed to be http.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("client: empty API address")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Status fetches the daemon runtime status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var status api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &status)
	return status, err
}

// QueueList returns queue entries, optionally filtered by status.
func (c *Client) QueueList(ctx context.Context, status string) ([]api.QueueEntry, error) {
	values := url.Values{}
	if strings.TrimSpace(status) != "" {
		values.Set("status", status)
	}
	var resp api.QueueListResponse
	if err := c.do(ctx, http.MethodGet, "/api/queue", values, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// QueueHistory returns a page of completed entries, newest first.
func (c *Client) QueueHistory(ctx context.Context, page, pageSize int) ([]api.QueueEntry, error) {
	values := url.Values{}
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		values.Set("page_size", strconv.Itoa(pageSize))
	}
	var resp api.QueueListResponse
	if err := c.do(ctx, http.MethodGet, "/api/queue/history", values, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// QueueCount returns the number of entries still waiting or playing.
func (c *Client) QueueCount(ctx context.Context) (int, error) {
	var resp api.QueueCountResponse
	if err := c.do(ctx, http.MethodGet, "/api/queue/count", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// QueueDescribe fetches a single queue entry.
func (c *Client) QueueDescribe(ctx context.Context, id int64) (api.QueueEntry, error) {
	var resp api.QueueEntryResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/queue/%d", id), nil, nil, &resp)
	return resp.Entry, err
}

// QueueRemove deletes a pending or completed entry.
func (c *Client) QueueRemove(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/queue/%d", id), nil, nil, nil)
}

// Complete reports a finished alert. The returned flag is false when the
// entry had already been closed by someone else.
func (c *Client) Complete(ctx context.Context, id int64) (bool, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/queue/%d/complete", id), nil, nil, &raw); err != nil {
		return false, err
	}
	var loser struct {
		Completed *bool `json:"completed"`
	}
	if err := json.Unmarshal(raw, &loser); err == nil && loser.Completed != nil {
		return *loser.Completed, nil
	}
	return true, nil
}

// ClearCompleted removes completed entries and returns how many were deleted.
func (c *Client) ClearCompleted(ctx context.Context) (int64, error) {
	var resp api.ClearCompletedResponse
	if err := c.do(ctx, http.MethodPost, "/api/queue/clear-completed", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// Sweep asks the daemon for an immediate reconciliation pass.
func (c *Client) Sweep(ctx context.Context) (api.SweepResponse, error) {
	var resp api.SweepResponse
	err := c.do(ctx, http.MethodPost, "/api/sweep", nil, nil, &resp)
	return resp, err
}

// TestNotification asks the daemon to emit a test notification.
func (c *Client) TestNotification(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/test", nil, nil, nil)
}

// Paused reads the global pause flag.
func (c *Client) Paused(ctx context.Context) (bool, error) {
	var resp api.PauseStateResponse
	if err := c.do(ctx, http.MethodGet, "/api/pause", nil, nil, &resp); err != nil {
		return false, err
	}
	return resp.Paused, nil
}

// SetPaused flips the global pause flag.
func (c *Client) SetPaused(ctx context.Context, paused bool) error {
	return c.do(ctx, http.MethodPut, "/api/pause", nil, api.PauseStateResponse{Paused: paused}, nil)
}

// Trigger enqueues an alert by slug and returns the created entries.
func (c *Client) Trigger(ctx context.Context, slug, username string, giftCount int64) ([]api.QueueEntry, error) {
	values := url.Values{}
	if strings.TrimSpace(username) != "" {
		values.Set("username", username)
	}
	if giftCount > 0 {
		values.Set("gift_count", strconv.FormatInt(giftCount, 10))
	}
	var resp api.TriggerResponse
	path := "/api/trigger/" + url.PathEscape(slug)
	if err := c.do(ctx, http.MethodPost, path, values, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Leaderboard fetches the gift leaderboard and its visibility flag.
func (c *Client) Leaderboard(ctx context.Context, limit int) (api.LeaderboardResponse, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var resp api.LeaderboardResponse
	err := c.do(ctx, http.MethodGet, "/api/stats/leaderboard", values, nil, &resp)
	return resp, err
}

// Alerts lists the authored alert definitions.
func (c *Client) Alerts(ctx context.Context) ([]api.AlertDefinition, error) {
	var resp api.AlertListResponse
	if err := c.do(ctx, http.MethodGet, "/api/alerts", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

// SaveAlert creates or updates an alert definition.
func (c *Client) SaveAlert(ctx context.Context, def api.AlertDefinition) (api.AlertDefinition, error) {
	var saved api.AlertDefinition
	err := c.do(ctx, http.MethodPost, "/api/alerts", nil, def, &saved)
	return saved, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, apiErrorMessage(resp.Body))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("daemon API returned status %d: %s", resp.StatusCode, apiErrorMessage(resp.Body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiErrorMessage extracts the error field from a failure payload.
func apiErrorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil || payload.Error == "" {
		return "no detail"
	}
	return payload.Error
}

// IsDaemonUnavailable reports whether the error means no daemon is listening,
// so commands can print a friendly hint instead of a transport error.
func IsDaemonUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrDaemonUnavailable) || errors.As(err, &opErr)
}
