package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPStore talks to the backend document service over JSON/HTTP. Revisions
// ride in ETag/If-Match headers; a 412 maps to ErrConflict so conditional
// updates behave exactly like MemStore.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore creates a store client for the given base URL.
func NewHTTPStore(baseURL string) (*HTTPStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ledger: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("ledger: base URL must be a valid URL")
	}
	return &HTTPStore{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

func (s *HTTPStore) docURL(collection, id string) string {
	return fmt.Sprintf("%s/v1/%s/%s", s.baseURL, url.PathEscape(collection), url.PathEscape(id))
}

func (s *HTTPStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.docURL(collection, id), nil)
	if err != nil {
		return nil, err
	}
	return s.do(req, collection, id)
}

func (s *HTTPStore) Create(ctx context.Context, collection, id string, data any) (*Document, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.docURL(collection, id), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, collection, id)
}

func (s *HTTPStore) Update(ctx context.Context, collection, id string, expectedRev int64, data any) (*Document, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.docURL(collection, id), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("If-Match", strconv.FormatInt(expectedRev, 10))
	return s.do(req, collection, id)
}

func (s *HTTPStore) Query(ctx context.Context, collection string, filters []Filter, limit int) ([]Document, error) {
	q := url.Values{}
	for _, f := range filters {
		q.Add("filter", f.Field+"=="+f.Value)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u := fmt.Sprintf("%s/v1/%s?%s", s.baseURL, url.PathEscape(collection), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to query %s: status %d", collection, resp.StatusCode)
	}

	var docs []Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode query result: %w", err)
	}
	return docs, nil
}

func (s *HTTPStore) do(req *http.Request, collection, id string) (*Document, error) {
	// Request id ties failed conditional updates to the backend's logs.
	req.Header.Set("X-Request-Id", uuid.NewString())
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger request failed for %s/%s: %w", collection, id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusPreconditionFailed, http.StatusConflict:
		return nil, ErrConflict
	default:
		return nil, fmt.Errorf("ledger request for %s/%s: status %d", collection, id, resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &doc, nil
}
