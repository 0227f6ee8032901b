// Package sheetapi implements the RecordSource port against the spreadsheet
// web-app endpoint that fronts the shared credential sheet.
package sheetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hyeonwkim/passdir/internal/domain/model"
	"github.com/hyeonwkim/passdir/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RecordSource = (*Client)(nil)

// Client talks to the spreadsheet web-app API. Reads are plain GETs selected
// by an action query parameter; mutations are JSON POSTs carrying an action
// field. The client performs no caching and no retries — the snapshot cache
// upstream of it owns both concerns.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Client for the given web-app URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// envelope is the wire shape shared by every endpoint response. Older script
// deployments omit the success flag, so only a non-empty error is treated as
// a failure once the HTTP status checks out.
type envelope struct {
	Success   bool             `json:"success"`
	Error     string           `json:"error"`
	Data      []map[string]any `json:"data"`
	Members   []memberWire     `json:"members"`
	Favorites []favoriteWire   `json:"favorites"`
}

type memberWire struct {
	Email string `json:"email"`
	Group string `json:"group"`
}

type favoriteWire struct {
	Email       string `json:"email"`
	ServiceID   string `json:"serviceId"`
	ServiceName string `json:"serviceName"`
	CreatedAt   string `json:"createdAt"`
}

// FetchServices retrieves the full service catalog and normalizes each row
// into the canonical ServiceRecord schema.
func (c *Client) FetchServices(ctx context.Context) ([]model.ServiceRecord, error) {
	env, err := c.get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("fetching services: %w", err)
	}

	records := make([]model.ServiceRecord, 0, len(env.Data))
	for _, row := range env.Data {
		records = append(records, normalizeRow(row))
	}
	return records, nil
}

// FetchMembers retrieves all (email, group) membership rows.
func (c *Client) FetchMembers(ctx context.Context) ([]model.Member, error) {
	env, err := c.get(ctx, "getMembers")
	if err != nil {
		return nil, fmt.Errorf("fetching members: %w", err)
	}

	members := make([]model.Member, 0, len(env.Members))
	for _, m := range env.Members {
		members = append(members, model.Member{Email: m.Email, Group: m.Group})
	}
	return members, nil
}

// FetchFavorites retrieves every favorite row across all users.
func (c *Client) FetchFavorites(ctx context.Context) ([]model.Favorite, error) {
	env, err := c.get(ctx, "getFavorites")
	if err != nil {
		return nil, fmt.Errorf("fetching favorites: %w", err)
	}

	favorites := make([]model.Favorite, 0, len(env.Favorites))
	for _, f := range env.Favorites {
		createdAt, _ := time.Parse(time.RFC3339, f.CreatedAt)
		favorites = append(favorites, model.Favorite{
			Email:       f.Email,
			ServiceID:   f.ServiceID,
			ServiceName: f.ServiceName,
			CreatedAt:   createdAt,
		})
	}
	return favorites, nil
}

// AddMember appends a membership row upstream.
func (c *Client) AddMember(ctx context.Context, email, group string) error {
	return c.post(ctx, "addMember", map[string]any{"email": email, "group": group})
}

// RemoveMember deletes the matching (email, group) row upstream.
func (c *Client) RemoveMember(ctx context.Context, email, group string) error {
	return c.post(ctx, "removeMember", map[string]any{"email": email, "group": group})
}

// AddFavorite appends a favorite row upstream. The script deduplicates on
// (email, serviceId), so repeated calls leave a single row.
func (c *Client) AddFavorite(ctx context.Context, fav model.Favorite) error {
	return c.post(ctx, "addFavorite", map[string]any{
		"email":       fav.Email,
		"serviceId":   fav.ServiceID,
		"serviceName": fav.ServiceName,
		"createdAt":   fav.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// RemoveFavorite deletes the matching favorite row upstream.
func (c *Client) RemoveFavorite(ctx context.Context, email, serviceID string) error {
	return c.post(ctx, "removeFavorite", map[string]any{"email": email, "serviceId": serviceID})
}

// get performs a read request for the given action ("" selects the service
// catalog) and decodes the response envelope.
func (c *Client) get(ctx context.Context, action string) (*envelope, error) {
	url := c.baseURL
	if action != "" {
		url += "?action=" + action
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// post performs a mutation request. The action is carried in the JSON body,
// matching the script's doPost dispatch.
func (c *Client) post(ctx context.Context, action string, payload map[string]any) error {
	payload["action"] = action

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: building request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

func (c *Client) do(req *http.Request) (*envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("upstream error: %s", env.Error)
	}

	return &env, nil
}
