package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"liveclass/pkg/types"
)

const maxResultBytes = 4 << 20

var (
	ErrMissingURL      = errors.New("executor url is required")
	ErrSandboxRejected = errors.New("execution sandbox rejected request")
	ErrResultTooLarge  = errors.New("execution result too large")
)

// Client posts run requests to the external execution sandbox. The
// sandbox response body is relayed without interpretation.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a sandbox client. timeout bounds one whole request.
func NewClient(url string, timeout time.Duration) (*Client, error) {
	if url == "" {
		return nil, ErrMissingURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Execute sends req and returns the sandbox's JSON response
func (c *Client) Execute(ctx context.Context, req types.ExecutionRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execution request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build execution request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execution request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read execution result: %w", err)
	}
	if len(data) > maxResultBytes {
		return nil, ErrResultTooLarge
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrSandboxRejected, resp.StatusCode)
	}
	if !json.Valid(data) {
		// non-JSON output is still relayed, as a string
		quoted, err := json.Marshal(string(data))
		if err != nil {
			return nil, err
		}
		return quoted, nil
	}
	return json.RawMessage(data), nil
}
