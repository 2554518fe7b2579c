package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PQ-Bitcoin/internal/host"
	"PQ-Bitcoin/internal/observability/metrics"
	"PQ-Bitcoin/internal/task"
	"PQ-Bitcoin/internal/witness"
	"PQ-Bitcoin/internal/zkvm/guest"
	"PQ-Bitcoin/internal/zkvm/prover"
)

type fixture struct {
	store  *task.MemoryStore
	svc    *task.Service
	runner *host.Runner
	server *Server
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	client, err := prover.NewClient()
	require.NoError(t, err)
	registry := guest.Registry()
	runner := host.NewRunner(registry, client)

	store := task.NewMemoryStore()
	queue := task.NewMemoryQueue(16)
	svc := task.NewService(store, queue, 2, task.WithCatalog(registry))

	ctx, cancel := context.WithCancel(context.Background())
	processor := task.NewProcessor(runner, store, queue, queue, task.WithWorkerCount(2))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = processor.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	opts = append([]Option{WithPrograms(runner)}, opts...)
	return &fixture{store: store, svc: svc, runner: runner, server: NewServer(":0", svc, opts...)}
}

func (f *fixture) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSubmitAndFetchProof(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/proofs", task.Request{
		ID:      "poly-1",
		Program: guest.PolynomialName,
		Mode:    task.ModeProve,
		Stdin:   witness.Polynomial(7, 3, 8),
	}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := f.svc.WaitUntilCompleted(ctx, "poly-1", 10*time.Millisecond)
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/api/v1/proofs/poly-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, task.StatusSucceeded, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, float64(372), got.Result.Decoded["y"])
	assert.Len(t, got.Result.PublicValues, 96)

	vk, err := f.runner.VerifyingKey(guest.PolynomialName)
	require.NoError(t, err)
	assert.Equal(t, vk.Bytes32(), got.Result.VKey)
	assert.Len(t, got.Result.Attestation, 65)
}

func TestRejectedIdentityClaimIsTerminal(t *testing.T) {
	f := newFixture(t)

	key, err := witness.ParseSecretKey("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	id, err := witness.NewIdentity(guest.BitcoinIdentity().Scheme(), key, nil)
	require.NoError(t, err)
	id.Address[len(id.Address)-1] ^= 0xff

	rec := f.do(t, http.MethodPost, "/api/v1/proofs", task.Request{
		ID:      "btc-bad",
		Program: guest.BitcoinIdentity().Name(),
		Stdin:   id.Stdin(),
	}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done, err := f.svc.WaitUntilCompleted(ctx, "btc-bad", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, done.Status)
	assert.True(t, done.Terminal)
	assert.Equal(t, 1, done.Attempts)

	rec = f.do(t, http.MethodGet, "/api/v1/proofs/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats task.TaskStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Rejected)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		body any
		want int
		code string
	}{
		{name: "unknown program", body: task.Request{Program: "fibonacci"}, want: http.StatusBadRequest, code: string(task.CodeTaskValidation)},
		{name: "bad mode", body: task.Request{Program: guest.PolynomialName, Mode: "simulate"}, want: http.StatusBadRequest, code: string(task.CodeTaskValidation)},
		{name: "unknown field", body: map[string]any{"program": guest.PolynomialName, "goal": "x"}, want: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "bad stdin", body: map[string]any{"program": guest.PolynomialName, "stdin": []string{"zz"}}, want: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/proofs", tc.body, nil)
			require.Equal(t, tc.want, rec.Code, rec.Body.String())
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Error.Code)
		})
	}
}

func TestProofNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/proofs/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProofsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, sample := range []*task.Task{
		{ID: "a", Program: guest.PolynomialName, Mode: task.ModeExecute, Status: task.StatusSucceeded, MaxRetries: 3},
		{ID: "b", Program: "bitcoin-identity", Mode: task.ModeExecute, Status: task.StatusFailed, MaxRetries: 3},
	} {
		require.NoError(t, f.store.Create(ctx, sample))
	}

	rec := f.do(t, http.MethodGet, "/api/v1/proofs?status=failed&program=bitcoin-identity", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "b", tasks[0].ID)

	for _, query := range []string{"limit=0", "offset=-1", "status=done", "has_result=maybe", "updated_since=yesterday"} {
		rec = f.do(t, http.MethodGet, "/api/v1/proofs?"+query, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestPrograms(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/programs", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var programs []ProgramInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &programs))
	require.Len(t, programs, 3)
	assert.Equal(t, "account-identity", programs[0].Name)
	for _, p := range programs {
		vk, err := f.runner.VerifyingKey(p.Name)
		require.NoError(t, err)
		assert.Equal(t, vk.Bytes32(), p.VKey)
	}
}

func TestAuthToken(t *testing.T) {
	f := newFixture(t, WithAuthToken("s3cret"))

	rec := f.do(t, http.MethodGet, "/api/v1/programs", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/programs", nil, http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/programs", nil, http.Header{"Authorization": {"Bearer s3cret"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.New()
	f := newFixture(t, WithMetrics(collector, "/metrics"))

	f.do(t, http.MethodGet, "/api/v1/programs", nil, nil)
	rec := f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pqclaim_http_requests_total{code="200",handler="programs",method="GET"} 1`)
}
