// Command pqclaim runs the guest programs locally: execute a claim, prove and
// verify it, or print a program's verifying key.
package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"

	xerrors "PQ-Bitcoin/internal/errors"
	"PQ-Bitcoin/internal/host"
	"PQ-Bitcoin/internal/proofs"
	"PQ-Bitcoin/internal/task"
	"PQ-Bitcoin/internal/witness"
	"PQ-Bitcoin/internal/zkvm"
	"PQ-Bitcoin/internal/zkvm/guest"
	"PQ-Bitcoin/internal/zkvm/prover"
	"PQ-Bitcoin/pkg/logger"
)

var (
	programFlag = &cli.StringFlag{
		Name:     "program",
		Aliases:  []string{"p"},
		Usage:    "guest program: polynomial, bitcoin-identity or account-identity",
		Required: true,
	}
	xFlag = &cli.UintFlag{Name: "x", Usage: "polynomial input x", Value: 7}
	aFlag = &cli.UintFlag{Name: "a", Usage: "polynomial coefficient a", Value: 3}
	bFlag = &cli.UintFlag{Name: "b", Usage: "polynomial constant b", Value: 8}

	secretKeyFlag = &cli.StringFlag{
		Name:    "secret-key",
		Usage:   "hex secp256k1 secret key of the identity; a fresh key is generated when empty",
		EnvVars: []string{"PQBTC_SECRET_KEY"},
	}
	auxFlag = &cli.StringFlag{
		Name:  "aux",
		Usage: "auxiliary key committed next to the address",
		Value: string(witness.DefaultAuxiliaryKey),
	}
	stdinFileFlag = &cli.PathFlag{
		Name:  "stdin-file",
		Usage: "JSON array of hex frames used instead of the generated witness",
	}
	attestationKeyFlag = &cli.StringFlag{
		Name:    "attestation-key",
		Usage:   "hex secret key of the prover attester; a fresh key is generated when empty",
		EnvVars: []string{"PQBTC_ATTESTATION_KEY"},
	}
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	claimFlags := []cli.Flag{programFlag, xFlag, aFlag, bFlag, secretKeyFlag, auxFlag, stdinFileFlag, attestationKeyFlag}
	return &cli.App{
		Name:   "pqclaim",
		Usage:  "execute and prove verifiable identity claims",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "log level written to stderr", Value: "warn"},
		},
		Before: func(c *cli.Context) error {
			return logger.Init(logger.Config{Level: c.String("log-level"), Format: "text", OutputPaths: []string{"stderr"}, Service: "pqclaim"})
		},
		Commands: []*cli.Command{
			{
				Name:   "execute",
				Usage:  "run a guest program and print its public values",
				Flags:  claimFlags,
				Action: claimAction(task.ModeExecute),
			},
			{
				Name:   "prove",
				Usage:  "run a guest program, attest the public values and verify the proof",
				Flags:  claimFlags,
				Action: claimAction(task.ModeProve),
			},
			{
				Name:   "vkey",
				Usage:  "print the verifying key hash of a program",
				Flags:  []cli.Flag{programFlag, attestationKeyFlag},
				Action: vkeyAction,
			},
			{
				Name:   "programs",
				Usage:  "list the guest programs",
				Action: programsAction,
			},
		},
	}
}

// claimOutput is printed by execute and prove.
type claimOutput struct {
	Program  string                `json:"program"`
	Mode     task.Mode             `json:"mode"`
	Identity *identityOutput       `json:"identity,omitempty"`
	Result   *task.ExecutionResult `json:"result"`
}

type identityOutput struct {
	PublicKey hexutil.Bytes `json:"public_key"`
	Address   hexutil.Bytes `json:"address"`
	Signature hexutil.Bytes `json:"signature"`
}

func claimAction(mode task.Mode) cli.ActionFunc {
	return func(c *cli.Context) error {
		runner, err := newRunner(c)
		if err != nil {
			return err
		}
		program, ok := guest.Registry().Lookup(c.String(programFlag.Name))
		if !ok {
			return cli.Exit(fmt.Sprintf("unknown program %q", c.String(programFlag.Name)), 2)
		}

		output := claimOutput{Program: program.Name(), Mode: mode}
		stdin, identity, err := buildStdin(c, program)
		if err != nil {
			return err
		}
		output.Identity = identity

		result, err := runner.Execute(c.Context, task.Request{Program: program.Name(), Mode: mode, Stdin: stdin})
		if err != nil {
			if proofs.IsRejection(err) {
				return cli.Exit(fmt.Sprintf("claim rejected: %v", err), 3)
			}
			if xerrors.CodeOf(err) == zkvm.CodeInputStream {
				return cli.Exit(fmt.Sprintf("malformed input stream: %v", err), 2)
			}
			return err
		}
		output.Result = result
		return writeJSON(c.App.Writer, output)
	}
}

func vkeyAction(c *cli.Context) error {
	runner, err := newRunner(c)
	if err != nil {
		return err
	}
	vk, err := runner.VerifyingKey(c.String(programFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return writeJSON(c.App.Writer, map[string]string{
		"program":        vk.Program,
		"vkey":           vk.Bytes32(),
		"program_digest": vk.ProgramDigest.Hex(),
		"attester":       vk.Attester.Hex(),
	})
}

func programsAction(c *cli.Context) error {
	return writeJSON(c.App.Writer, guest.Registry().Names())
}

func newRunner(c *cli.Context) (*host.Runner, error) {
	var opts []prover.Option
	if raw := c.String(attestationKeyFlag.Name); raw != "" {
		key, err := witness.ParseSecretKey(raw)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("attestation key: %v", err), 2)
		}
		opts = append(opts, prover.WithAttestationKey(key))
	}
	client, err := prover.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return host.NewRunner(guest.Registry(), client, host.WithLogger(logger.Named("pqclaim"))), nil
}

// buildStdin returns the witness frames for program, either read from
// --stdin-file or generated from the command line flags.
func buildStdin(c *cli.Context, program zkvm.Program) (*zkvm.Stdin, *identityOutput, error) {
	if path := c.Path(stdinFileFlag.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, cli.Exit(fmt.Sprintf("read stdin file: %v", err), 2)
		}
		stdin := zkvm.NewStdin()
		if err := json.Unmarshal(data, stdin); err != nil {
			return nil, nil, cli.Exit(fmt.Sprintf("parse stdin file: %v", err), 2)
		}
		return stdin, nil, nil
	}

	switch p := program.(type) {
	case guest.Polynomial:
		var in [3]uint32
		for i, flag := range []*cli.UintFlag{xFlag, aFlag, bFlag} {
			v, err := u32Flag(c, flag)
			if err != nil {
				return nil, nil, err
			}
			in[i] = v
		}
		return witness.Polynomial(in[0], in[1], in[2]), nil, nil
	case guest.Identity:
		key, err := loadSecretKey(c.String(secretKeyFlag.Name))
		if err != nil {
			return nil, nil, err
		}
		id, err := witness.NewIdentity(p.Scheme(), key, []byte(c.String(auxFlag.Name)))
		if err != nil {
			return nil, nil, err
		}
		return id.Stdin(), &identityOutput{PublicKey: id.PublicKey, Address: id.Address, Signature: id.Signature}, nil
	}
	return nil, nil, cli.Exit(fmt.Sprintf("no witness builder for program %q", program.Name()), 2)
}

// u32Flag reads a polynomial input, which the guest takes as a u32 frame.
func u32Flag(c *cli.Context, flag *cli.UintFlag) (uint32, error) {
	v := c.Uint(flag.Name)
	if uint64(v) > math.MaxUint32 {
		return 0, cli.Exit(fmt.Sprintf("--%s %d does not fit in 32 bits", flag.Name, v), 2)
	}
	return uint32(v), nil
}

func loadSecretKey(raw string) (*ecdsa.PrivateKey, error) {
	if raw == "" {
		return witness.GenerateKey()
	}
	key, err := witness.ParseSecretKey(raw)
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}
	return key, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
