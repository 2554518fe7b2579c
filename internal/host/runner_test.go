package host

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "PQ-Bitcoin/internal/errors"
	"PQ-Bitcoin/internal/proofs"
	"PQ-Bitcoin/internal/task"
	"PQ-Bitcoin/internal/witness"
	"PQ-Bitcoin/internal/zkvm"
	"PQ-Bitcoin/internal/zkvm/guest"
	"PQ-Bitcoin/internal/zkvm/prover"
)

type claimCounter struct {
	mu       sync.Mutex
	accepted int
	rejected map[xerrors.Code]int
}

func (c *claimCounter) ObserveClaim(_ string, accepted bool, code xerrors.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if accepted {
		c.accepted++
		return
	}
	if c.rejected == nil {
		c.rejected = make(map[xerrors.Code]int)
	}
	c.rejected[code]++
}

func newRunner(t *testing.T) (*Runner, *claimCounter) {
	t.Helper()
	client, err := prover.NewClient()
	require.NoError(t, err)
	counter := &claimCounter{}
	return NewRunner(guest.Registry(), client, WithClaimObserver(counter)), counter
}

func TestRunnerExecutePolynomial(t *testing.T) {
	r, counter := newRunner(t)
	res, err := r.Execute(context.Background(), task.Request{
		Program: guest.PolynomialName,
		Mode:    task.ModeExecute,
		Stdin:   witness.Polynomial(7, 3, 8),
	})
	require.NoError(t, err)
	assert.Len(t, res.PublicValues, 96)
	assert.Equal(t, uint32(372), res.Decoded["y"])
	assert.Equal(t, 3, res.FramesRead)
	assert.Empty(t, res.VKey)
	assert.Equal(t, 1, counter.accepted)
}

func TestRunnerProveIdentity(t *testing.T) {
	r, _ := newRunner(t)
	key, err := witness.GenerateKey()
	require.NoError(t, err)
	w, err := witness.NewIdentity(proofs.SchemeAccount, key, nil)
	require.NoError(t, err)

	res, err := r.Execute(context.Background(), task.Request{
		Program: guest.AccountIdentityName,
		Mode:    task.ModeProve,
		Stdin:   w.Stdin(),
	})
	require.NoError(t, err)
	assert.Equal(t, hexutil.Bytes(w.Address), res.Decoded["claimed_address"])

	vk, err := r.VerifyingKey(guest.AccountIdentityName)
	require.NoError(t, err)
	assert.Equal(t, vk.Bytes32(), res.VKey)
	require.NoError(t, prover.Verify(&prover.Proof{
		PublicValues: res.PublicValues,
		VKey:         vk.Hash(),
		Signature:    res.Attestation,
	}, vk))
}

func TestRunnerRejectionsAreTerminal(t *testing.T) {
	r, counter := newRunner(t)
	key, err := witness.GenerateKey()
	require.NoError(t, err)
	w, err := witness.NewIdentity(proofs.SchemeBitcoin, key, nil)
	require.NoError(t, err)
	w.Address[0] ^= 0xff

	res, err := r.Execute(context.Background(), task.Request{
		Program: guest.BitcoinIdentityName,
		Mode:    task.ModeProve,
		Stdin:   w.Stdin(),
	})
	require.ErrorIs(t, err, proofs.ErrVerification)
	assert.Nil(t, res)
	assert.False(t, xerrors.RetryableError(err))

	_, err = r.Execute(context.Background(), task.Request{Program: guest.PolynomialName, Stdin: zkvm.NewStdin()})
	assert.Equal(t, zkvm.CodeInputStream, xerrors.CodeOf(err))
	assert.False(t, xerrors.RetryableError(err))

	assert.Equal(t, map[xerrors.Code]int{proofs.CodeVerification: 1, zkvm.CodeInputStream: 1}, counter.rejected)
	assert.Zero(t, counter.accepted)
}

func TestRunnerRequestErrors(t *testing.T) {
	r, _ := newRunner(t)
	_, err := r.Execute(context.Background(), task.Request{Program: "missing"})
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))

	_, err = r.Execute(context.Background(), task.Request{Program: guest.PolynomialName, Mode: "simulate"})
	assert.Equal(t, task.CodeTaskValidation, xerrors.CodeOf(err))

	_, err = r.VerifyingKey("missing")
	assert.Error(t, err)
	assert.Equal(t, []string{guest.AccountIdentityName, guest.BitcoinIdentityName, guest.PolynomialName}, r.Programs())
}

// countingProgram wraps a guest program and counts its runs.
type countingProgram struct {
	zkvm.Program
	mu   sync.Mutex
	runs int
}

func (p *countingProgram) Run(in *zkvm.Reader, out *zkvm.PublicValues) error {
	p.mu.Lock()
	p.runs++
	p.mu.Unlock()
	return p.Program.Run(in, out)
}

func TestRunnerRunsGuestOncePerJob(t *testing.T) {
	counting := &countingProgram{Program: guest.Polynomial{}}
	registry, err := zkvm.NewRegistry(counting)
	require.NoError(t, err)
	client, err := prover.NewClient()
	require.NoError(t, err)
	r := NewRunner(registry, client)

	res, err := r.Execute(context.Background(), task.Request{
		Program: guest.PolynomialName,
		Mode:    task.ModeProve,
		Stdin:   witness.Polynomial(7, 3, 8),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counting.runs)
	assert.Equal(t, uint32(372), res.Decoded["y"])
	assert.Equal(t, 3, res.FramesRead)
	assert.NotEmpty(t, res.Attestation)

	_, err = r.Execute(context.Background(), task.Request{
		Program: guest.PolynomialName,
		Mode:    task.ModeExecute,
		Stdin:   witness.Polynomial(7, 3, 8),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, counting.runs)
}
