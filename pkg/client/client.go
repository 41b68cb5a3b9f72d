// Package client is the Go SDK for the Veridian audit ledger service.
//
// It covers the full HTTP surface: appending events, reading and verifying
// the chain, triggering anchoring cycles, and querying anchor records. All
// calls take a context and return typed results.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AppendRequest is the payload for AppendEvent.
type AppendRequest struct {
	ActorType    string          `json:"actor_type"`
	ActorID      string          `json:"actor_id"`
	EntityType   string          `json:"entity_type,omitempty"`
	EntityID     string          `json:"entity_id,omitempty"`
	Action       string          `json:"action"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ModelVersion *string         `json:"model_version,omitempty"`
	ReasonCodes  []string        `json:"reason_codes,omitempty"`
}

// Event is one stored ledger event.
type Event struct {
	Sequence     int64           `json:"sequence"`
	Timestamp    time.Time       `json:"timestamp"`
	ActorType    string          `json:"actor_type"`
	ActorID      string          `json:"actor_id"`
	EntityType   string          `json:"entity_type"`
	EntityID     string          `json:"entity_id"`
	Action       string          `json:"action"`
	Payload      json.RawMessage `json:"payload"`
	ModelVersion *string         `json:"model_version"`
	ReasonCodes  []string        `json:"reason_codes"`
	PrevHash     string          `json:"prev_hash"`
	Hash         string          `json:"hash"`
}

// Head is the chain tip.
type Head struct {
	Sequence int64  `json:"sequence"`
	Hash     string `json:"hash"`
}

// Overview is the chain summary returned by GET /ledger.
type Overview struct {
	Events int64 `json:"events"`
	Head   Head  `json:"head"`
}

// VerifyResult is the outcome of a chain verification run.
type VerifyResult struct {
	Events              int64  `json:"events"`
	Valid               bool   `json:"valid"`
	Checked             int64  `json:"checked"`
	FirstBrokenSequence int64  `json:"first_broken_sequence"`
	Reason              string `json:"reason"`
}

// AnchorRecord is one external anchoring proof.
type AnchorRecord struct {
	AnchorID          string    `json:"anchor_id"`
	Timestamp         time.Time `json:"timestamp"`
	Method            string    `json:"method"`
	ExternalReference string    `json:"external_reference"`
	AnchoredHash      string    `json:"anchored_hash"`
	AnchoredSequence  int64     `json:"anchored_sequence"`
}

// BackendResult is one backend's outcome within an anchoring cycle.
type BackendResult struct {
	Method string        `json:"method"`
	Status string        `json:"status"`
	Error  string        `json:"error,omitempty"`
	Record *AnchorRecord `json:"record,omitempty"`
}

// CycleReport aggregates one anchoring cycle.
type CycleReport struct {
	StartedAt time.Time       `json:"started_at"`
	Head      Head            `json:"head"`
	Results   []BackendResult `json:"results"`
}

// AnchorsResult is the anchor audit query response.
type AnchorsResult struct {
	Head    Head           `json:"head"`
	Anchors []AnchorRecord `json:"anchors"`
}

// Client talks to one ledger service instance.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	anchorToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAnchorToken sets the bearer token for the anchoring trigger endpoint.
func WithAnchorToken(token string) Option {
	return func(c *Client) { c.anchorToken = token }
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AppendEvent records one business fact on the chain.
func (c *Client) AppendEvent(ctx context.Context, req AppendRequest) (*Event, error) {
	var e Event
	if err := c.do(ctx, http.MethodPost, "/api/v1/events", "", req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Overview returns the chain length and current head.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var o Overview
	if err := c.do(ctx, http.MethodGet, "/api/v1/ledger", "", nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Events reads events with from <= sequence <= to.
func (c *Client) Events(ctx context.Context, from, to int64) ([]Event, error) {
	var resp struct {
		Events []Event `json:"events"`
	}
	path := fmt.Sprintf("/api/v1/ledger/events?from=%d&to=%d", from, to)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// Event returns the event at the given sequence.
func (c *Client) Event(ctx context.Context, seq int64) (*Event, error) {
	var e Event
	path := fmt.Sprintf("/api/v1/ledger/events/%d", seq)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Verify checks the whole chain.
func (c *Client) Verify(ctx context.Context) (*VerifyResult, error) {
	var r VerifyResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/ledger/verify", "", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// VerifyRange checks events with from <= sequence <= to.
func (c *Client) VerifyRange(ctx context.Context, from, to int64) (*VerifyResult, error) {
	var r VerifyResult
	path := fmt.Sprintf("/api/v1/ledger/verify?from=%d&to=%d", from, to)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// RunAnchors triggers one anchoring cycle, optionally restricted to the
// named backends. Requires the anchor token.
func (c *Client) RunAnchors(ctx context.Context, backends ...string) (*CycleReport, error) {
	var body any
	if len(backends) > 0 {
		body = map[string]any{"backends": backends}
	}
	var report CycleReport
	if err := c.do(ctx, http.MethodPost, "/api/v1/anchors/run", c.anchorToken, body, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Anchors returns the current head and the most recent anchor records.
func (c *Client) Anchors(ctx context.Context, limit int) (*AnchorsResult, error) {
	var r AnchorsResult
	path := fmt.Sprintf("/api/v1/anchors?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
