package pqclaim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitProofSendsFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/proofs" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("expected bearer token, got %q", got)
		}
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode body: %v", err)
		}
		frames, _ := raw["stdin"].([]any)
		if len(frames) != 3 || frames[0] != "0x07000000" {
			t.Errorf("unexpected stdin: %v", raw["stdin"])
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(Proof{ID: "job-1", Program: "polynomial", Status: StatusPending})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.SetAccessToken("token")

	var stdin Stdin
	stdin.WriteU32(7)
	stdin.WriteU32(3)
	stdin.WriteU32(8)
	proof, err := client.SubmitProof(context.Background(), ProofRequest{Program: "polynomial", Stdin: stdin})
	if err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	if proof.ID != "job-1" || proof.Status != StatusPending {
		t.Fatalf("unexpected proof: %+v", proof)
	}
}

func TestGetProofError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(struct {
			Error APIError `json:"error"`
		}{Error: APIError{Code: "TASK_NOT_FOUND", Message: "task not found"}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.GetProof(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "TASK_NOT_FOUND" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestListProgramsAndFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/programs":
			_ = json.NewEncoder(w).Encode([]Program{{Name: "polynomial", VKey: "0xabc"}})
		case "/api/v1/proofs":
			q := r.URL.Query()
			if q.Get("status") != "failed,running" || q.Get("program") != "polynomial" || q.Get("limit") != "5" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			_ = json.NewEncoder(w).Encode([]Proof{{ID: "a"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	programs, err := client.ListPrograms(context.Background())
	if err != nil {
		t.Fatalf("list programs: %v", err)
	}
	if len(programs) != 1 || programs[0].VKey != "0xabc" {
		t.Fatalf("unexpected programs: %+v", programs)
	}

	proofs, err := client.ListProofs(context.Background(), ListFilter{
		Limit:    5,
		Statuses: []string{StatusFailed, StatusRunning},
		Programs: []string{"polynomial"},
	})
	if err != nil {
		t.Fatalf("list proofs: %v", err)
	}
	if len(proofs) != 1 || proofs[0].ID != "a" {
		t.Fatalf("unexpected proofs: %+v", proofs)
	}
}

func TestWaitForProof(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := Proof{ID: "job", Status: StatusRunning, MaxRetries: 3}
		if calls.Add(1) >= 3 {
			p.Status = StatusFailed
			p.Terminal = true
		}
		_ = json.NewEncoder(w).Encode(p)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	proof, err := client.WaitForProof(ctx, "job", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !proof.Done() || proof.Status != StatusFailed {
		t.Fatalf("unexpected proof: %+v", proof)
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewClient("localhost", nil); err == nil {
		t.Fatal("expected error for url without scheme")
	}
}
