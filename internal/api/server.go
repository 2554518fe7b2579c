package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	xerrors "PQ-Bitcoin/internal/errors"
	"PQ-Bitcoin/internal/observability/metrics"
	"PQ-Bitcoin/internal/task"
	"PQ-Bitcoin/internal/zkvm/prover"
)

// ProgramCatalog 列出可运行的程序及其验证密钥，*host.Runner 满足该接口。
type ProgramCatalog interface {
	Programs() []string
	VerifyingKey(program string) (prover.VerifyingKey, error)
}

// ProgramInfo 是 GET /api/v1/programs 的单项响应。
type ProgramInfo struct {
	Name          string `json:"name"`
	VKey          string `json:"vkey"`
	ProgramDigest string `json:"program_digest"`
	Attester      string `json:"attester"`
}

// ErrorBody 是所有错误响应的结构。
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail 携带错误码与描述。
type ErrorDetail struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Server 负责暴露 REST 接口，供外部提交与查询证明任务。
type Server struct {
	addr         string
	tasks        *task.Service
	programs     ProgramCatalog
	metrics      *metrics.Collector
	metricsPath  string
	authToken    string
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Option 定义 Server 的可选配置。
type Option func(*Server)

// WithPrograms 启用程序列表接口。
func WithPrograms(catalog ProgramCatalog) Option {
	return func(s *Server) {
		s.programs = catalog
	}
}

// WithMetrics 记录请求指标，并在 path 上暴露指标。path 为空时不挂载指标接口。
func WithMetrics(collector *metrics.Collector, path string) Option {
	return func(s *Server) {
		s.metrics = collector
		s.metricsPath = path
	}
}

// WithAuthToken 要求 /api/ 下的请求携带 Bearer 令牌。
func WithAuthToken(token string) Option {
	return func(s *Server) {
		s.authToken = strings.TrimSpace(token)
	}
}

// WithTimeouts 设置读写超时。
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, svc *task.Service, opts ...Option) *Server {
	s := &Server{
		addr:         addr,
		tasks:        svc,
		readTimeout:  15 * time.Second,
		writeTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由，便于测试直接调用。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "POST /api/v1/proofs", "proofs_create", s.handleCreateProof)
	s.route(mux, "GET /api/v1/proofs", "proofs_list", s.handleListProofs)
	s.route(mux, "GET /api/v1/proofs/stats", "proofs_stats", s.handleStats)
	s.route(mux, "GET /api/v1/proofs/{id}", "proofs_detail", s.handleProofDetail)
	s.route(mux, "GET /api/v1/programs", "programs", s.handlePrograms)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil && s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, s.metrics.Handler())
	}
	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern, name string, fn http.HandlerFunc) {
	var h http.Handler = s.requireToken(fn)
	if s.metrics != nil {
		h = s.metrics.Middleware(name, h)
	}
	mux.Handle(pattern, h)
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleCreateProof 处理提交证明任务的请求。
func (s *Server) handleCreateProof(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化"))
		return
	}
	var req task.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}

	created, err := s.tasks.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, created)
}

func (s *Server) handleListProofs(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化"))
		return
	}
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := s.tasks.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化"))
		return
	}
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.tasks.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleProofDetail(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化"))
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "缺少任务 ID"))
		return
	}
	found, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handlePrograms(w http.ResponseWriter, _ *http.Request) {
	if s.programs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "程序目录未初始化"))
		return
	}
	names := s.programs.Programs()
	out := make([]ProgramInfo, 0, len(names))
	for _, name := range names {
		vk, err := s.programs.VerifyingKey(name)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, ProgramInfo{
			Name:          name,
			VKey:          vk.Bytes32(),
			ProgramDigest: vk.ProgramDigest.Hex(),
			Attester:      vk.Attester.Hex(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// listOptionsFromQuery 解析列表与统计接口共用的过滤参数。
func listOptionsFromQuery(r *http.Request) ([]task.ListOption, error) {
	q := r.URL.Query()
	var opts []task.ListOption

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "limit 必须为正整数")
		}
		opts = append(opts, task.WithLimit(limit))
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "offset 必须为非负整数")
		}
		opts = append(opts, task.WithOffset(offset))
	}
	if raw := q.Get("status"); raw != "" {
		var statuses []task.Status
		for _, part := range splitList(raw) {
			status := task.Status(strings.ToLower(part))
			if !task.IsValidStatus(status) {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "未知的任务状态", xerrors.WithMetadata("status", part))
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	if raw := q.Get("program"); raw != "" {
		opts = append(opts, task.WithPrograms(splitList(raw)...))
	}
	if raw := q.Get("has_result"); raw != "" {
		has, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "has_result 必须为布尔值")
		}
		opts = append(opts, task.WithResultPresence(has))
	}
	for key, apply := range map[string]func(time.Time) task.ListOption{
		"updated_since": task.WithUpdatedSince,
		"updated_until": task.WithUpdatedUntil,
	} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, key+" 必须为 Unix 秒")
		}
		opts = append(opts, apply(time.Unix(sec, 0)))
	}
	if strings.EqualFold(q.Get("order"), "asc") {
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	}
	if raw := q.Get("q"); raw != "" {
		opts = append(opts, task.WithQuery(raw))
	}
	return opts, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	if s.authToken == "" {
		return next
	}
	expected := []byte("Bearer " + s.authToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="pqclaim"`)
			writeError(w, xerrors.New(xerrors.CodeUnauthorized, "缺少或无效的访问令牌"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor 将错误码映射为 HTTP 状态码。
func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument, task.CodeTaskValidation:
		return http.StatusBadRequest
	case xerrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case xerrors.CodeNotFound, task.CodeTaskNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, task.CodeTaskConflict:
		return http.StatusConflict
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case task.CodeTaskPublish, xerrors.CodeQueueFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	detail := ErrorDetail{Code: string(code), Message: err.Error()}
	if xerr, ok := xerrors.From(err); ok {
		detail.Message = xerr.Message()
		detail.Metadata = xerr.Metadata()
	}
	writeJSON(w, statusFor(code), ErrorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
