// Package prover runs guest programs and produces attested proofs of their
// public values. It keeps the execute / setup / prove / verify contract of a
// proving backend; the proof itself is a secp256k1 attestation by the host key
// bound to the program's verifying key.
package prover

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/minio/sha256-simd"

	xerrors "PQ-Bitcoin/internal/errors"
	"PQ-Bitcoin/internal/zkvm"
)

// CodeProofInvalid marks a proof that does not verify against a key.
const CodeProofInvalid xerrors.Code = "PROOF_INVALID"

func init() {
	xerrors.Register(CodeProofInvalid, xerrors.Attributes{
		Message:  "proof does not verify",
		Severity: xerrors.SeverityWarning,
	})
}

// ErrProofInvalid matches every proof verification failure via errors.Is.
var ErrProofInvalid = xerrors.New(CodeProofInvalid, "")

// ExecutionReport summarises one guest run.
type ExecutionReport struct {
	Program          string `json:"program"`
	FramesRead       int    `json:"frames_read"`
	BytesRead        int    `json:"bytes_read"`
	FramesUnread     int    `json:"frames_unread"`
	PublicValuesSize int    `json:"public_values_size"`
}

// VerifyingKey identifies a program build and the attester whose signatures
// are accepted for it.
type VerifyingKey struct {
	Program       string         `json:"program"`
	ProgramDigest common.Hash    `json:"program_digest"`
	Attester      common.Address `json:"attester"`
}

// Hash returns keccak256(programDigest || attester).
func (vk VerifyingKey) Hash() common.Hash {
	return crypto.Keccak256Hash(vk.ProgramDigest[:], vk.Attester[:])
}

// Bytes32 returns the 0x-prefixed hex form of Hash, the value external
// verifiers pin.
func (vk VerifyingKey) Bytes32() string {
	return vk.Hash().Hex()
}

// ProvingKey carries the program and its verifying key.
type ProvingKey struct {
	program zkvm.Program
	vk      VerifyingKey
}

// Program returns the program the key was set up for.
func (pk *ProvingKey) Program() zkvm.Program { return pk.program }

// VerifyingKey returns the matching verifying key.
func (pk *ProvingKey) VerifyingKey() VerifyingKey { return pk.vk }

// Proof binds public values to a verifying key.
type Proof struct {
	Program      string        `json:"program"`
	PublicValues hexutil.Bytes `json:"public_values"`
	VKey         common.Hash   `json:"vkey"`
	Signature    hexutil.Bytes `json:"signature"`

	// Report describes the guest run the proof was made from. It is not
	// covered by the attestation.
	Report ExecutionReport `json:"-"`
}

// Client executes and proves guest programs.
type Client struct {
	key      *ecdsa.PrivateKey
	attester common.Address
}

// Option configures a Client.
type Option func(*Client)

// WithAttestationKey sets the key proofs are signed with. Without it a fresh
// key is generated, so verifying keys differ between processes.
func WithAttestationKey(key *ecdsa.PrivateKey) Option {
	return func(c *Client) {
		c.key = key
	}
}

// NewClient constructs a Client.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.key == nil {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "generate attestation key")
		}
		c.key = key
	}
	c.attester = crypto.PubkeyToAddress(c.key.PublicKey)
	return c, nil
}

// Attester returns the address proofs are attributed to.
func (c *Client) Attester() common.Address { return c.attester }

// Execute runs prog over stdin and returns the committed public values. A
// program error, including a claim rejection, is returned unchanged and no
// public values are produced.
func (c *Client) Execute(ctx context.Context, prog zkvm.Program, stdin *zkvm.Stdin) ([]byte, ExecutionReport, error) {
	report := ExecutionReport{}
	if prog == nil {
		return nil, report, xerrors.New(xerrors.CodeInvalidArgument, "program is required")
	}
	report.Program = prog.Name()
	if err := ctx.Err(); err != nil {
		return nil, report, xerrors.Wrap(xerrors.CodeTimeout, err, "execution cancelled")
	}

	in := stdin.Reader()
	var out zkvm.PublicValues
	err := prog.Run(in, &out)
	report.FramesRead = in.Consumed()
	report.BytesRead = in.BytesRead()
	report.FramesUnread = in.Remaining()
	if err != nil {
		return nil, report, err
	}
	report.PublicValuesSize = out.Len()
	return out.Bytes(), report, nil
}

// Setup derives the proving and verifying keys for prog.
func (c *Client) Setup(prog zkvm.Program) (*ProvingKey, VerifyingKey) {
	vk := VerifyingKey{
		Program:       prog.Name(),
		ProgramDigest: common.Hash(zkvm.ProgramDigest(prog)),
		Attester:      c.attester,
	}
	return &ProvingKey{program: prog, vk: vk}, vk
}

// Prove executes the program and attests its public values.
func (c *Client) Prove(ctx context.Context, pk *ProvingKey, stdin *zkvm.Stdin) (*Proof, error) {
	if pk == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "proving key is required")
	}
	publicValues, report, err := c.Execute(ctx, pk.program, stdin)
	if err != nil {
		return nil, err
	}
	vkHash := pk.vk.Hash()
	sig, err := crypto.Sign(attestationDigest(vkHash, publicValues), c.key)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProverFailure, err, "sign attestation")
	}
	return &Proof{
		Program:      pk.vk.Program,
		PublicValues: publicValues,
		VKey:         vkHash,
		Signature:    sig,
		Report:       report,
	}, nil
}

// Verify checks that proof was produced for vk and that its attestation was
// signed by vk's attester.
func (c *Client) Verify(proof *Proof, vk VerifyingKey) error {
	return Verify(proof, vk)
}

// Verify is the stateless form of Client.Verify.
func Verify(proof *Proof, vk VerifyingKey) error {
	if proof == nil {
		return invalid("proof is missing")
	}
	vkHash := vk.Hash()
	if proof.VKey != vkHash {
		return invalid(fmt.Sprintf("proof is for vkey %s, not %s", proof.VKey.Hex(), vkHash.Hex()))
	}
	if len(proof.Signature) != crypto.SignatureLength {
		return invalid("attestation has wrong length")
	}
	pub, err := crypto.SigToPub(attestationDigest(vkHash, proof.PublicValues), proof.Signature)
	if err != nil {
		return xerrors.Wrap(CodeProofInvalid, err, "recover attester")
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != vk.Attester {
		return invalid(fmt.Sprintf("attestation signed by %s", signer.Hex()))
	}
	return nil
}

// attestationDigest is keccak256(vkey || sha256(publicValues)).
func attestationDigest(vkHash common.Hash, publicValues []byte) []byte {
	pvDigest := sha256.Sum256(publicValues)
	return crypto.Keccak256(vkHash[:], pvDigest[:])
}

func invalid(reason string) error {
	return xerrors.New(CodeProofInvalid, reason)
}
