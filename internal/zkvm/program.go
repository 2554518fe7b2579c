package zkvm

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/minio/sha256-simd"
)

// Program is a guest computation. Run reads its inputs from in and commits
// public values to out. A returned error aborts the run and discards out.
type Program interface {
	Name() string
	Run(in *Reader, out *PublicValues) error
}

// PublicValues accumulates the bytes a guest commits to.
type PublicValues struct {
	buf bytes.Buffer
}

// CommitSlice appends b to the public values.
func (p *PublicValues) CommitSlice(b []byte) {
	p.buf.Write(b)
}

// Bytes returns a copy of the committed bytes.
func (p *PublicValues) Bytes() []byte {
	return bytes.Clone(p.buf.Bytes())
}

// Len returns the number of committed bytes.
func (p *PublicValues) Len() int { return p.buf.Len() }

// ProgramDigest identifies a program build. Verifying keys are derived from it.
func ProgramDigest(p Program) [32]byte {
	return sha256.Sum256([]byte("pq-bitcoin/guest/" + p.Name()))
}

// Registry resolves programs by name.
type Registry struct {
	programs map[string]Program
}

// NewRegistry builds a registry from programs. Duplicate names are rejected.
func NewRegistry(programs ...Program) (*Registry, error) {
	r := &Registry{programs: make(map[string]Program, len(programs))}
	for _, p := range programs {
		if p == nil {
			continue
		}
		name := strings.TrimSpace(p.Name())
		if name == "" {
			return nil, fmt.Errorf("program name is empty")
		}
		if _, exists := r.programs[name]; exists {
			return nil, fmt.Errorf("program %q registered twice", name)
		}
		r.programs[name] = p
	}
	return r, nil
}

// Lookup returns the named program.
func (r *Registry) Lookup(name string) (Program, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.programs[strings.TrimSpace(name)]
	return p, ok
}

// Names returns the registered program names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.programs))
	for name := range r.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
