package task

import (
	"bytes"
	stdErrors "errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	xerrors "PQ-Bitcoin/internal/errors"
	"PQ-Bitcoin/internal/zkvm"
)

// Status 表示证明任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Mode 决定任务只执行程序还是同时生成并校验证明。
type Mode string

const (
	ModeExecute Mode = "execute"
	ModeProve   Mode = "prove"
)

// ParseMode 解析模式名称，空字符串视为 execute。
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeExecute:
		return ModeExecute, nil
	case ModeProve:
		return ModeProve, nil
	}
	return "", xerrors.New(CodeTaskValidation, "unsupported mode", xerrors.WithMetadata("mode", raw))
}

// Request 描述一次提交的证明任务。
type Request struct {
	ID       string         `json:"id,omitempty"`
	Program  string         `json:"program"`
	Mode     Mode           `json:"mode"`
	Stdin    *zkvm.Stdin    `json:"stdin"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ExecutionResult 保存一次任务执行的结果。
type ExecutionResult struct {
	PublicValues hexutil.Bytes  `json:"public_values"`
	Decoded      map[string]any `json:"decoded,omitempty"`
	VKey         string         `json:"vkey,omitempty"`
	Attestation  hexutil.Bytes  `json:"attestation,omitempty"`
	FramesRead   int            `json:"frames_read"`
	BytesRead    int            `json:"bytes_read"`
}

// Task 描述了排队执行的证明任务。
type Task struct {
	ID         string           `json:"id"`
	Program    string           `json:"program"`
	Mode       Mode             `json:"mode"`
	Stdin      *zkvm.Stdin      `json:"stdin"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
	Status     Status           `json:"status"`
	Attempts   int              `json:"attempts"`
	MaxRetries int              `json:"max_retries"`
	Terminal   bool             `json:"terminal,omitempty"`
	LastError  string           `json:"last_error,omitempty"`
	ErrorCode  string           `json:"error_code,omitempty"`
	Result     *ExecutionResult `json:"result,omitempty"`
	CreatedAt  int64            `json:"created_at"`
	UpdatedAt  int64            `json:"updated_at"`
}

// Request 还原任务对应的执行请求。
func (t *Task) Request() Request {
	return Request{
		ID:       t.ID,
		Program:  t.Program,
		Mode:     t.Mode,
		Stdin:    t.Stdin.Clone(),
		Metadata: cloneMetadata(t.Metadata),
	}
}

var (
	// ErrTaskNotFound 表示指定的任务不存在。
	ErrTaskNotFound = xerrors.New(CodeTaskNotFound, "task not found")
	// ErrTaskConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrTaskConflict = xerrors.New(CodeTaskConflict, "task conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrTaskCompleted 表示任务已经成功完成。
	ErrTaskCompleted = xerrors.New(CodeTaskCompleted, "task already completed", xerrors.WithSeverity(xerrors.SeverityInfo))
	// ErrTaskExhausted 表示任务已无剩余尝试次数，或已被标记为终止。
	ErrTaskExhausted = xerrors.New(CodeTaskExhausted, "task retries exhausted", xerrors.WithSeverity(xerrors.SeverityCritical))
)

const (
	CodeTaskNotFound   xerrors.Code = "TASK_NOT_FOUND"
	CodeTaskConflict   xerrors.Code = "TASK_CONFLICT"
	CodeTaskCompleted  xerrors.Code = "TASK_COMPLETED"
	CodeTaskExhausted  xerrors.Code = "TASK_RETRIES_EXHAUSTED"
	CodeTaskValidation xerrors.Code = "TASK_VALIDATION_FAILED"
	CodeTaskPublish    xerrors.Code = "TASK_PUBLISH_FAILED"
	CodeTaskProcessing xerrors.Code = "TASK_PROCESSING_FAILED"
)

func init() {
	xerrors.Register(CodeTaskNotFound, xerrors.Attributes{
		Message:   "task not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskConflict, xerrors.Attributes{
		Message:   "task conflict",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskCompleted, xerrors.Attributes{
		Message:   "task already completed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskExhausted, xerrors.Attributes{
		Message:   "task retries exhausted",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeTaskValidation, xerrors.Attributes{
		Message:   "task validation failed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTaskPublish, xerrors.Attributes{
		Message:   "failed to publish task",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeTaskProcessing, xerrors.Attributes{
		Message:   "task execution failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
}

// IsTaskError 判断错误是否为统一任务错误。
func IsTaskError(err error, target xerrors.Code) bool {
	if err == nil {
		return false
	}
	if stdErrors.Is(err, ErrTaskNotFound) {
		return target == CodeTaskNotFound
	}
	if stdErrors.Is(err, ErrTaskConflict) {
		return target == CodeTaskConflict
	}
	if stdErrors.Is(err, ErrTaskCompleted) {
		return target == CodeTaskCompleted
	}
	if stdErrors.Is(err, ErrTaskExhausted) {
		return target == CodeTaskExhausted
	}
	return false
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	cloned := make(map[string]any, len(metadata))
	for key, value := range metadata {
		cloned[key] = value
	}
	return cloned
}

func cloneResult(result *ExecutionResult) *ExecutionResult {
	if result == nil {
		return nil
	}
	clone := *result
	clone.PublicValues = bytes.Clone(result.PublicValues)
	clone.Attestation = bytes.Clone(result.Attestation)
	clone.Decoded = cloneMetadata(result.Decoded)
	return &clone
}

func cloneTask(task *Task) *Task {
	clone := *task
	clone.Stdin = task.Stdin.Clone()
	clone.Result = cloneResult(task.Result)
	clone.Metadata = cloneMetadata(task.Metadata)
	return &clone
}

// IsValidStatus 检查给定的任务状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}
