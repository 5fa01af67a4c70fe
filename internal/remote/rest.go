package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Ensure REST implements Store.
var _ Store = (*REST)(nil)

// REST talks to the remote store over its JSON/HTTP dialect:
//
//	GET    {base}/{path}.json            read
//	PATCH  {base}/{path}.json            merge children
//	POST   {base}/{path}.json            append with generated key
//	PUT    {base}/{path}/{key}.json      write at explicit key
//
// Conditional writes for Swap use the store's ETag protocol
// (X-Firebase-ETag / if-match). Transport-level reconnection is the HTTP
// client's job; retry policy lives in the resilient wrapper, not here.
type REST struct {
	base   string
	auth   string
	client *http.Client
}

// NewREST builds a client for the store rooted at baseURL. auth, when
// non-empty, is sent as the auth query parameter on every request.
func NewREST(baseURL, auth string) (*REST, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("store base URL is empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid store base URL: %w", err)
	}
	return &REST{
		base:   strings.TrimRight(baseURL, "/"),
		auth:   auth,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (r *REST) Get(ctx context.Context, path string) ([]byte, error) {
	body, _, err := r.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	if isNull(body) {
		return nil, nil
	}
	return body, nil
}

func (r *REST) Update(ctx context.Context, path string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal update for %s: %w", path, err)
	}
	_, _, err = r.do(ctx, http.MethodPatch, path, payload, "")
	return err
}

func (r *REST) Push(ctx context.Context, path, key string, value any) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value for %s: %w", path, err)
	}
	if key != "" {
		if _, _, err := r.do(ctx, http.MethodPut, path+"/"+key, payload, ""); err != nil {
			return "", err
		}
		return key, nil
	}
	body, _, err := r.do(ctx, http.MethodPost, path, payload, "")
	if err != nil {
		return "", err
	}
	var allocated struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &allocated); err != nil {
		return "", fmt.Errorf("failed to decode push response for %s: %w", path, err)
	}
	return allocated.Name, nil
}

func (r *REST) Swap(ctx context.Context, path string, expected, next any) (bool, error) {
	body, etag, err := r.doETag(ctx, path)
	if err != nil {
		return false, err
	}
	if isNull(body) {
		body = nil
	}
	if !jsonEqual(body, expected) {
		return false, nil
	}

	var payload []byte
	if next == nil {
		payload = []byte("null")
	} else {
		payload, err = json.Marshal(next)
		if err != nil {
			return false, fmt.Errorf("failed to marshal value for %s: %w", path, err)
		}
	}
	_, status, err := r.do(ctx, http.MethodPut, path, payload, etag)
	if status == http.StatusPreconditionFailed {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// doETag reads path together with its ETag for a conditional write.
func (r *REST) doETag(ctx context.Context, path string) ([]byte, string, error) {
	req, err := r.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("X-Firebase-ETag", "true")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: failed to read body: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	return body, resp.Header.Get("ETag"), nil
}

func (r *REST) do(ctx context.Context, method, path string, payload []byte, etag string) ([]byte, int, error) {
	req, err := r.newRequest(ctx, method, path, payload)
	if err != nil {
		return nil, 0, err
	}
	if etag != "" {
		req.Header.Set("if-match", etag)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: failed to read body: %w", method, path, err)
	}
	if resp.StatusCode == http.StatusPreconditionFailed {
		return body, resp.StatusCode, fmt.Errorf("%s %s: precondition failed", method, path)
	}
	if resp.StatusCode != http.StatusOK {
		return body, resp.StatusCode, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

func (r *REST) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	u := r.base + "/" + strings.Trim(path, "/") + ".json"
	if r.auth != "" {
		u += "?auth=" + url.QueryEscape(r.auth)
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func isNull(body []byte) bool {
	return len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null"))
}
