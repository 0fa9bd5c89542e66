package resume

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"liveclass/pkg/types"
)

// HTTPValidator checks sessions against a server's
// GET /api/sessions/{id}/validate endpoint
type HTTPValidator struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPValidator returns a validator for the server at baseURL
// (e.g. http://localhost:8080) authenticating with a bearer token
func NewHTTPValidator(baseURL, token string, timeout time.Duration) *HTTPValidator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPValidator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ValidateSession implements Validator
func (v *HTTPValidator) ValidateSession(ctx context.Context, sessionID string) (bool, error) {
	endpoint := v.baseURL + "/api/sessions/" + url.PathEscape(sessionID) + "/validate"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build validate request: %w", err)
	}
	if v.token != "" {
		req.Header.Set("Authorization", "Bearer "+v.token)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, fmt.Errorf("%w: server refused token (%d)", types.ErrAuthorization, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("%w: unexpected status %d", types.ErrConnection, resp.StatusCode)
	}

	var payload types.ValidatePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("decode validate response: %w", err)
	}
	return payload.Valid, nil
}
