// Package host connects queued proof jobs to the guest programs and the
// prover: it resolves the program, runs it in execute or prove mode and turns
// the outcome into a job result.
package host

import (
	"context"
	"log/slog"
	"sync"

	xerrors "PQ-Bitcoin/internal/errors"
	"PQ-Bitcoin/internal/proofs"
	"PQ-Bitcoin/internal/task"
	"PQ-Bitcoin/internal/zkvm"
	"PQ-Bitcoin/internal/zkvm/guest"
	"PQ-Bitcoin/internal/zkvm/prover"
	"PQ-Bitcoin/pkg/logger"
)

// ClaimObserver is told about every claim a guest program accepted or rejected.
type ClaimObserver interface {
	ObserveClaim(program string, accepted bool, code xerrors.Code)
}

// Runner executes proof jobs.
type Runner struct {
	registry *zkvm.Registry
	client   *prover.Client
	observer ClaimObserver
	logger   *slog.Logger

	mu   sync.Mutex
	keys map[string]*prover.ProvingKey
}

// Option configures a Runner.
type Option func(*Runner)

// WithClaimObserver registers an observer for claim outcomes.
func WithClaimObserver(o ClaimObserver) Option {
	return func(r *Runner) {
		r.observer = o
	}
}

// WithLogger overrides the logger used for rejections.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner builds a Runner over registry and client.
func NewRunner(registry *zkvm.Registry, client *prover.Client, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		client:   client,
		keys:     make(map[string]*prover.ProvingKey),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = logger.Named("host")
	}
	return r
}

// Programs returns the registered program names.
func (r *Runner) Programs() []string {
	return r.registry.Names()
}

// VerifyingKey returns the verifying key of the named program.
func (r *Runner) VerifyingKey(program string) (prover.VerifyingKey, error) {
	pk, err := r.provingKey(program)
	if err != nil {
		return prover.VerifyingKey{}, err
	}
	return pk.VerifyingKey(), nil
}

// Execute runs req. Claim rejections and malformed input are returned as
// non-retryable errors; anything else the prover reports is retryable.
func (r *Runner) Execute(ctx context.Context, req task.Request) (*task.ExecutionResult, error) {
	prog, ok := r.registry.Lookup(req.Program)
	if !ok {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "unknown program", xerrors.WithMetadata("program", req.Program))
	}
	mode, err := task.ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	var (
		publicValues []byte
		report       prover.ExecutionReport
		proof        *prover.Proof
		vkey         string
	)
	if mode == task.ModeProve {
		// Prove runs the guest itself; the output comes from the proof.
		pk, err := r.provingKey(prog.Name())
		if err != nil {
			return nil, err
		}
		proof, err = r.client.Prove(ctx, pk, req.Stdin)
		if err != nil {
			return nil, r.failure(prog.Name(), err)
		}
		if err := r.client.Verify(proof, pk.VerifyingKey()); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeProverFailure, err, "verify fresh proof")
		}
		publicValues, report, vkey = proof.PublicValues, proof.Report, pk.VerifyingKey().Bytes32()
	} else {
		publicValues, report, err = r.client.Execute(ctx, prog, req.Stdin)
		if err != nil {
			return nil, r.failure(prog.Name(), err)
		}
	}

	decoded, err := guest.Decode(prog.Name(), publicValues)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProverFailure, err, "decode public values")
	}
	result := &task.ExecutionResult{
		PublicValues: publicValues,
		Decoded:      decoded,
		FramesRead:   report.FramesRead,
		BytesRead:    report.BytesRead,
		VKey:         vkey,
	}
	if proof != nil {
		result.Attestation = proof.Signature
	}

	r.observe(prog.Name(), true, "")
	logger.Audit().Info("claim accepted",
		slog.String("job_id", req.ID),
		slog.String("program", prog.Name()),
		slog.String("mode", string(mode)),
		slog.Int("public_values_size", report.PublicValuesSize),
	)
	return result, nil
}

func (r *Runner) failure(program string, err error) error {
	code := xerrors.CodeOf(err)
	if proofs.IsRejection(err) || code == zkvm.CodeInputStream {
		r.observe(program, false, code)
		r.logger.Warn("claim rejected",
			slog.String("program", program),
			slog.String("error_code", string(code)),
			slog.String("error", err.Error()),
		)
		return err
	}
	if _, ok := xerrors.From(err); ok {
		return err
	}
	return xerrors.Wrap(xerrors.CodeProverFailure, err, "run program")
}

func (r *Runner) provingKey(program string) (*prover.ProvingKey, error) {
	prog, ok := r.registry.Lookup(program)
	if !ok {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "unknown program", xerrors.WithMetadata("program", program))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if pk, ok := r.keys[prog.Name()]; ok {
		return pk, nil
	}
	pk, _ := r.client.Setup(prog)
	r.keys[prog.Name()] = pk
	return pk, nil
}

func (r *Runner) observe(program string, accepted bool, code xerrors.Code) {
	if r.observer != nil {
		r.observer.ObserveClaim(program, accepted, code)
	}
}

var _ task.Executor = (*Runner)(nil)
