// Package pqclaim is a small client for the proof job REST API exposed by
// pqclaimd.
package pqclaim

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Job statuses reported by the server.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Client wraps the HTTP interactions with the pqclaimd REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// Stdin is the ordered list of input frames handed to a guest program.
type Stdin []hexutil.Bytes

// WriteU32 appends a four-byte little-endian frame.
func (s *Stdin) WriteU32(v uint32) {
	frame := make([]byte, 4)
	binary.LittleEndian.PutUint32(frame, v)
	*s = append(*s, frame)
}

// WriteBytes appends a copy of b as a single frame.
func (s *Stdin) WriteBytes(b []byte) {
	*s = append(*s, append([]byte{}, b...))
}

// ProofRequest represents the payload required to create a new proof job.
type ProofRequest struct {
	ID       string         `json:"id,omitempty"`
	Program  string         `json:"program"`
	Mode     string         `json:"mode,omitempty"`
	Stdin    Stdin          `json:"stdin"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ProofResult carries the committed public values and, in prove mode, the
// verifying key hash and attestation.
type ProofResult struct {
	PublicValues hexutil.Bytes  `json:"public_values"`
	Decoded      map[string]any `json:"decoded,omitempty"`
	VKey         string         `json:"vkey,omitempty"`
	Attestation  hexutil.Bytes  `json:"attestation,omitempty"`
	FramesRead   int            `json:"frames_read"`
	BytesRead    int            `json:"bytes_read"`
}

// Proof is the server view of a proof job.
type Proof struct {
	ID         string         `json:"id"`
	Program    string         `json:"program"`
	Mode       string         `json:"mode"`
	Stdin      Stdin          `json:"stdin"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Status     string         `json:"status"`
	Attempts   int            `json:"attempts"`
	MaxRetries int            `json:"max_retries"`
	Terminal   bool           `json:"terminal,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
	Result     *ProofResult   `json:"result,omitempty"`
	CreatedAt  int64          `json:"created_at"`
	UpdatedAt  int64          `json:"updated_at"`
}

// Done reports whether the job will not change state any more.
func (p *Proof) Done() bool {
	if p == nil {
		return false
	}
	return p.Status == StatusSucceeded || (p.Status == StatusFailed && (p.Terminal || p.Attempts >= p.MaxRetries))
}

// Program describes a guest program and its verifying key.
type Program struct {
	Name          string `json:"name"`
	VKey          string `json:"vkey"`
	ProgramDigest string `json:"program_digest"`
	Attester      string `json:"attester"`
}

// Stats aggregates job counts.
type Stats struct {
	Total           int   `json:"total"`
	Pending         int   `json:"pending"`
	Running         int   `json:"running"`
	Succeeded       int   `json:"succeeded"`
	Failed          int   `json:"failed"`
	Rejected        int   `json:"rejected"`
	OldestUpdatedAt int64 `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64 `json:"newest_updated_at,omitempty"`
}

// ListFilter narrows ListProofs results. Zero values are ignored.
type ListFilter struct {
	Limit    int
	Offset   int
	Statuses []string
	Programs []string
	Query    string
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("pqclaim api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("pqclaim api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the pqclaimd API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken sets the bearer token sent with every API call.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// SubmitProof creates a proof job. Submitting an ID that already exists
// returns the existing job.
func (c *Client) SubmitProof(ctx context.Context, req ProofRequest) (*Proof, error) {
	if req.Program == "" {
		return nil, errors.New("pqclaim: program is required")
	}
	if req.Stdin == nil {
		req.Stdin = Stdin{}
	}
	var out Proof
	if err := c.post(ctx, "/api/v1/proofs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProof fetches a proof job by identifier.
func (c *Client) GetProof(ctx context.Context, id string) (*Proof, error) {
	if id == "" {
		return nil, errors.New("pqclaim: proof id is required")
	}
	var out Proof
	if err := c.get(ctx, "/api/v1/proofs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProofs returns jobs matching filter, most recently updated first.
func (c *Client) ListProofs(ctx context.Context, filter ListFilter) ([]Proof, error) {
	var out []Proof
	if err := c.get(ctx, "/api/v1/proofs", filter.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns aggregated job counts.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	if err := c.get(ctx, "/api/v1/proofs/stats", nil, &out); err != nil {
		return Stats{}, err
	}
	return out, nil
}

// ListPrograms returns the guest programs the server can run.
func (c *Client) ListPrograms(ctx context.Context) ([]Program, error) {
	var out []Program
	if err := c.get(ctx, "/api/v1/programs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WaitForProof polls GetProof until the job is done or ctx ends.
func (c *Client) WaitForProof(ctx context.Context, id string, interval time.Duration) (*Proof, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		proof, err := c.GetProof(ctx, id)
		if err != nil {
			return nil, err
		}
		if proof.Done() {
			return proof, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (f ListFilter) values() url.Values {
	v := url.Values{}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		v.Set("offset", strconv.Itoa(f.Offset))
	}
	if len(f.Statuses) > 0 {
		v.Set("status", strings.Join(f.Statuses, ","))
	}
	if len(f.Programs) > 0 {
		v.Set("program", strings.Join(f.Programs, ","))
	}
	if f.Query != "" {
		v.Set("q", f.Query)
	}
	return v
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: &apiErr})
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
