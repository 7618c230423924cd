package hostfunc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("b", func(ctx context.Context, args map[string]any) (any, error) { return "b", nil })
	r.Register("a", func(ctx context.Context, args map[string]any) (any, error) { return "a", nil })

	fn, ok := r.Get("a")
	assert.True(t, ok)
	got, _ := fn(context.Background(), nil)
	assert.Equal(t, "a", got)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, r.List())

}

func TestRegistryCall(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", func(ctx context.Context, args map[string]any) (any, error) {
		return len(args), nil
	})

	got, err := r.Call(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	_, err = r.Call(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownFunction)
	assert.Contains(t, err.Error(), "nope")
}
