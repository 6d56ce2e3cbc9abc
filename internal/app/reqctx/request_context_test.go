package reqctx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	assert.Nil(t, FromContext(nil))
}

func TestFromContext_NoRequestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}

func TestWithContext_RoundTrip(t *testing.T) {
	rc := New()
	ctx := WithContext(context.Background(), rc)

	assert.Same(t, rc, FromContext(ctx))
}

func TestFetch_CachesWithinRequest(t *testing.T) {
	ctx := WithContext(context.Background(), New())

	var calls int32
	load := func(_ context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)

		return "settings", nil
	}

	v1, err := Fetch(ctx, "settings:user-1", load)
	require.NoError(t, err)

	v2, err := Fetch(ctx, "settings:user-1", load)
	require.NoError(t, err)

	assert.Equal(t, "settings", v1)
	assert.Equal(t, "settings", v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_WithoutRequestContextAlwaysLoads(t *testing.T) {
	var calls int32
	load := func(_ context.Context) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}

	v1, _ := Fetch(context.Background(), "k", load)
	v2, _ := Fetch(context.Background(), "k", load)

	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	ctx := WithContext(context.Background(), New())
	failure := errors.New("store down")

	_, err := Fetch(ctx, "k", func(_ context.Context) (string, error) { return "", failure })
	require.ErrorIs(t, err, failure)

	v, err := Fetch(ctx, "k", func(_ context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestFetch_TypeMismatch(t *testing.T) {
	ctx := WithContext(context.Background(), New())

	_, err := Fetch(ctx, "k", func(_ context.Context) (string, error) { return "text", nil })
	require.NoError(t, err)

	_, err = Fetch(ctx, "k", func(_ context.Context) (int, error) { return 1, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds string")
}

func TestInvalidate(t *testing.T) {
	ctx := WithContext(context.Background(), New())

	_, _ = Fetch(ctx, "k", func(_ context.Context) (string, error) { return "old", nil })
	Invalidate(ctx, "k")

	v, err := Fetch(ctx, "k", func(_ context.Context) (string, error) { return "new", nil })
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	Invalidate(context.Background(), "k")
}

func TestGetOrFetch_Concurrent(t *testing.T) {
	rc := New()
	ctx := context.Background()

	var wg sync.WaitGroup

	for range 50 {
		wg.Go(func() {
			v, err := rc.GetOrFetch(ctx, "shared", func(_ context.Context) (any, error) { return "value", nil })
			assert.NoError(t, err)
			assert.Equal(t, "value", v)
		})
	}

	wg.Wait()
}
