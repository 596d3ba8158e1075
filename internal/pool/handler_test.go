package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerRegistry_Register(t *testing.T) {
	reg := NewHandlerRegistry()

	noop := func(ctx context.Context, payload any, progress func(int)) (any, error) {
		return nil, nil
	}

	require.NoError(t, reg.Register("checksum", noop))
	assert.True(t, reg.Has("checksum"))
	assert.False(t, reg.Has("unknown"))

	h, ok := reg.Get("checksum")
	assert.True(t, ok)
	assert.NotNil(t, h)

	assert.Error(t, reg.Register("checksum", noop), "duplicate registration must fail")
	assert.Error(t, reg.Register("", noop), "empty type must fail")
	assert.Error(t, reg.Register("nil-handler", nil), "nil handler must fail")
}

func TestHandlerRegistry_Types(t *testing.T) {
	reg := NewHandlerRegistry()
	noop := func(ctx context.Context, payload any, progress func(int)) (any, error) {
		return nil, nil
	}

	require.NoError(t, reg.Register("a", noop))
	require.NoError(t, reg.Register("b", noop))

	assert.ElementsMatch(t, []string{"a", "b"}, reg.Types())
}
