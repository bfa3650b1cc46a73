// Package upstream fetches the tracked meter from the dashboard endpoint.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luki/meterwatch/internal/meter"
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

var (
	// ErrNetwork covers transport failures and non-2xx responses.
	ErrNetwork = errors.New("network failure")
	// ErrMalformed means the body was not a JSON array of meter records.
	ErrMalformed = errors.New("malformed response")
	// ErrEmpty means the endpoint returned an empty array. It also matches
	// ErrMalformed.
	ErrEmpty = fmt.Errorf("%w: no device data", ErrMalformed)
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Code)
}

// Unwrap makes a StatusError match ErrNetwork.
func (e *StatusError) Unwrap() error { return ErrNetwork }

// Client polls a single dashboard endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	log      *zap.Logger
}

// New creates a client for endpoint. timeout bounds each request.
func New(endpoint string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

// Endpoint returns the URL being polled.
func (c *Client) Endpoint() string { return c.endpoint }

// Fetch requests the endpoint and decodes the first record.
func (c *Client) Fetch(ctx context.Context) (meter.Reading, error) {
	reqID := uuid.NewString()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return meter.Reading{}, fmt.Errorf("request %s: %w: %w", reqID, ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		return meter.Reading{}, fmt.Errorf("request %s: %w: %w", reqID, ErrNetwork, err)
	}
	defer resp.Body.Close()

	c.log.Debug("upstream response",
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return meter.Reading{}, fmt.Errorf("request %s: %w", reqID, &StatusError{Code: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return meter.Reading{}, fmt.Errorf("request %s: read body: %w: %w", reqID, ErrNetwork, err)
	}

	r, err := Decode(body)
	if err != nil {
		return meter.Reading{}, fmt.Errorf("request %s: %w", reqID, err)
	}
	return r, nil
}

// Decode parses a response body: a JSON array whose first element is the
// tracked meter. Further elements are ignored.
func Decode(body []byte) (meter.Reading, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return meter.Reading{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(records) == 0 {
		return meter.Reading{}, ErrEmpty
	}

	first := bytes.TrimSpace(records[0])
	if bytes.Equal(first, []byte("null")) {
		return meter.Reading{}, fmt.Errorf("%w: first record is null", ErrMalformed)
	}

	var r meter.Reading
	if err := json.Unmarshal(first, &r); err != nil {
		return meter.Reading{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return r, nil
}
