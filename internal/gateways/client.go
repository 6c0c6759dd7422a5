package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBody = 1 << 20

// client is the small JSON/form HTTP helper shared by the adapters.
type client struct {
	provider models.Provider
	baseURL  string
	http     *http.Client
}

func newClient(provider models.Provider, baseURL string, timeout time.Duration) *client {
	return &client{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

type request struct {
	op          string
	method      string
	path        string
	body        []byte
	contentType string
	headers     map[string]string
}

func jsonRequest(op, method, path string, payload interface{}, headers map[string]string) (*request, error) {
	req := &request{op: op, method: method, path: path, headers: headers}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req.body = data
		req.contentType = "application/json"
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON response into out. Every failure comes back as a
// *apperrors.GatewayError.
func (c *client) do(ctx context.Context, req *request, out interface{}) error {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return apperrors.NewGatewayError(string(c.provider), req.op, err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return apperrors.NewGatewayError(string(c.provider), req.op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return apperrors.NewGatewayError(string(c.provider), req.op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewGatewayError(string(c.provider), req.op,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(data), 256)))
	}

	if out == nil {
		return nil
	}
	if err = json.Unmarshal(data, out); err != nil {
		return apperrors.NewGatewayError(string(c.provider), req.op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// flexString accepts both JSON strings and numbers, providers are not consistent about ids.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string {
	return string(f)
}
