package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/authsession/pkg/idx"
)

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// doRequest performs a JSON request. A non-empty accessToken is sent as a bearer
// credential. Failures to get any response are reported as *TransportError.
func (c *Client) doRequest(
	ctx context.Context,
	method, path string,
	body any,
	accessToken string,
) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", idx.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{Path: path, Err: err}
	}

	return resp, nil
}

// post sends a JSON POST and decodes a 2xx response into target. A nil target discards
// the response body.
func (c *Client) post(ctx context.Context, path string, body, target any, accessToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, path, body, accessToken)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target)
}

// get sends a GET and decodes a 2xx response into target.
func (c *Client) get(ctx context.Context, path string, target any, accessToken string) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, accessToken)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target)
}

// decodeJSON decodes a JSON response into the target.
// Returns an *APIError if the response status is not 2xx.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()

	// Read body once for both error parsing and success decoding
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := parseErrorResponse(resp, bodyBytes); err != nil {
		return err
	}

	// Some endpoints answer "OK" as plain text
	if target == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
