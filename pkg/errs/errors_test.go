package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := New(NotFound, "feature foo not found")
	assert.Equal(t, NotFound, KindOf(err))

	wrapped := fmtWrap(err)
	assert.Equal(t, NotFound, KindOf(wrapped))

	assert.Equal(t, Kind(""), KindOf(errors.New("plain error")))
}

func TestNewf(t *testing.T) {
	err := Newf(Ambiguous, "feature %s matched %d versions", "foo", 2)
	assert.Equal(t, Ambiguous, err.Kind)
	assert.Equal(t, "feature foo matched 2 versions", err.Error())
}

func TestMultiErrorErrOrNil(t *testing.T) {
	var m *MultiError
	assert.Nil(t, m.ErrOrNil())

	m = &MultiError{}
	assert.Nil(t, m.ErrOrNil())

	m.Add(nil)
	assert.Nil(t, m.ErrOrNil())

	m.Add(New(ModuleOperation, "start failed for bundle a"))
	m.Add(New(ModuleOperation, "start failed for bundle b"))
	err := m.ErrOrNil()
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "bundle a")
	assert.Contains(t, err.Error(), "bundle b")
}

func TestMultiErrorUnwrap(t *testing.T) {
	inner1 := New(IO, "write failed")
	inner2 := New(InvariantViolation, "checksum mismatch")
	m := &MultiError{Errors: []error{inner1, inner2}}

	assert.True(t, errors.Is(m, inner1))
	assert.True(t, errors.Is(m, inner2))
}

func fmtWrap(err error) error {
	return &wrapper{err: err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }
