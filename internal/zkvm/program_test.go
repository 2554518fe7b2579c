package zkvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedProgram string

func (p namedProgram) Name() string { return string(p) }

func (p namedProgram) Run(in *Reader, out *PublicValues) error {
	out.CommitSlice([]byte(p))
	return nil
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(namedProgram("b"), namedProgram("a"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.Names())

	p, ok := r.Lookup(" a ")
	require.True(t, ok)
	assert.Equal(t, "a", p.Name())

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	_, err = NewRegistry(namedProgram("a"), namedProgram("a"))
	assert.Error(t, err)
	_, err = NewRegistry(namedProgram(" "))
	assert.Error(t, err)
}

func TestProgramDigestDependsOnName(t *testing.T) {
	assert.Equal(t, ProgramDigest(namedProgram("a")), ProgramDigest(namedProgram("a")))
	assert.NotEqual(t, ProgramDigest(namedProgram("a")), ProgramDigest(namedProgram("b")))
}

func TestPublicValuesCopy(t *testing.T) {
	var pv PublicValues
	pv.CommitSlice([]byte{1, 2})
	pv.CommitSlice([]byte{3})
	out := pv.Bytes()
	out[0] = 9

	assert.Equal(t, []byte{1, 2, 3}, pv.Bytes())
	assert.Equal(t, 3, pv.Len())
}
