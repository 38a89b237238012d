// Package registry is the client side of the remote opportunity registry:
// an existence/deletion check plus an idempotent upsert, both keyed by
// externalId.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klop2495/art-grants-agent/internal/models"
)

// Actions reported for one synchronized record.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
)

// ReasonDeletedByUser marks records the registry's own users removed.
const ReasonDeletedByUser = "deleted_by_user"

// RemoteRecord is the registry's view of an opportunity.
type RemoteRecord struct {
	ID         string     `json:"id"`
	ExternalID string     `json:"external_id"`
	DeletedAt  *time.Time `json:"deleted_at"`
}

// SyncResult is what one Sync call decided.
type SyncResult struct {
	Action string
	ID     string
	Reason string
}

type upsertResponse struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Check looks a record up by externalId. A nil record means not found.
func (c *Client) Check(ctx context.Context, externalID string) (*RemoteRecord, error) {
	req, err := c.newRequest(ctx, http.MethodGet, externalID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry check returned status %d", resp.StatusCode)
	}

	var rec RemoteRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding registry record: %w", err)
	}
	return &rec, nil
}

// Sync reconciles one validated record with the registry. Records the
// registry's users deleted are skipped, never resent; otherwise the record
// is upserted and the server's action classification is reported as-is.
// The caller updates the sync state from the result.
func (c *Client) Sync(ctx context.Context, rec *models.OpportunityRecord) (SyncResult, error) {
	existing, err := c.Check(ctx, rec.ExternalID)
	if err != nil {
		return SyncResult{}, err
	}
	if existing != nil && existing.DeletedAt != nil {
		return SyncResult{
			Action: ActionSkipped,
			ID:     existing.ID,
			Reason: ReasonDeletedByUser,
		}, nil
	}

	payload := *rec
	// The remote schema has no TBD concept; an unknown deadline travels empty.
	if strings.EqualFold(payload.Deadline, models.DeadlineTBD) {
		payload.Deadline = ""
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return SyncResult{}, fmt.Errorf("encoding record: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, rec.ExternalID, bytes.NewReader(body))
	if err != nil {
		return SyncResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return SyncResult{}, fmt.Errorf("registry upsert failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return SyncResult{}, fmt.Errorf("registry upsert returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var upsert upsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&upsert); err != nil {
		return SyncResult{}, fmt.Errorf("decoding upsert response: %w", err)
	}

	// The server's classification is authoritative over our own check.
	// A record deleted server-side between our GET and PUT comes back
	// as a skipped upsert carrying the reason.
	switch upsert.Action {
	case ActionCreated, ActionUpdated:
		return SyncResult{Action: upsert.Action, ID: upsert.ID}, nil
	case ActionSkipped:
		return SyncResult{Action: ActionSkipped, ID: upsert.ID, Reason: upsert.Reason}, nil
	default:
		return SyncResult{}, fmt.Errorf("registry reported unknown action %q", upsert.Action)
	}
}

func (c *Client) newRequest(ctx context.Context, method, externalID string, body io.Reader) (*http.Request, error) {
	url := fmt.Sprintf("%s/api/opportunities/%s", c.BaseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	return req, nil
}
