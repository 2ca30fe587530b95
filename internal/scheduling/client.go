package scheduling

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

// Client talks to the clinic scheduling REST API. All calls are bounded by
// the request context plus the client timeout; a stuck backend must never
// hold a phone call hostage.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// PatientRecord looks a patient up by identity details.
func (c *Client) PatientRecord(ctx context.Context, q PatientQuery) (*PatientRecord, error) {
	var rec PatientRecord
	if err := c.post(ctx, "/patient-record", q, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// AvailableSlots returns bookable windows inside the query range.
func (c *Client) AvailableSlots(ctx context.Context, q SlotQuery) ([]TimeSlot, error) {
	var slots []TimeSlot
	if err := c.post(ctx, "/available-time-slots", q, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// BookSlot reserves an appointment.
func (c *Client) BookSlot(ctx context.Context, r BookingRequest) (*BookingConfirmation, error) {
	var conf BookingConfirmation
	if err := c.post(ctx, "/book-time-slot", r, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// CancelAppointment cancels an existing appointment.
func (c *Client) CancelAppointment(ctx context.Context, r CancelRequest) (*CancelConfirmation, error) {
	var conf CancelConfirmation
	if err := c.post(ctx, "/cancel-appointment", r, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("scheduling request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("scheduling %s failed with status %d: %s", path, resp.StatusCode, string(preview))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
