package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursmen/neuralhire/internal/embcache"
)

func newTestStore(t *testing.T, maxEntries int, ttl time.Duration) *Store {
	t.Helper()
	s, err := NewStore(maxEntries, ttl)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestNewStore_RejectsNonPositiveSize(t *testing.T) {
	_, err := NewStore(0, time.Hour)
	assert.Error(t, err)
}

func TestStore_GetSet(t *testing.T) {
	s := newTestStore(t, 10, time.Hour)
	ctx := context.Background()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, embcache.ErrMiss)

	value := []byte{1, 2, 3}
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 9

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	got[1] = 9
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, again)
}

func TestStore_Overwrite(t *testing.T) {
	s := newTestStore(t, 10, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("old")))
	require.NoError(t, s.Set(ctx, "k", []byte("new")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestStore_Expiry(t *testing.T) {
	s := newTestStore(t, 10, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("x")))

	assert.Eventually(t, func() bool {
		_, err := s.Get(ctx, "a")
		return errors.Is(err, embcache.ErrMiss)
	}, time.Second, 10*time.Millisecond)
}

func TestStore_Bounded(t *testing.T) {
	const size = 8
	s := newTestStore(t, size, time.Hour)
	ctx := context.Background()

	for i := range 10 * size {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("key-%d", i), []byte{byte(i)}))
	}

	held := 0
	for i := range 10 * size {
		if _, err := s.Get(ctx, fmt.Sprintf("key-%d", i)); err == nil {
			held++
		}
	}
	assert.LessOrEqual(t, held, size)
	assert.Positive(t, held)
}

type countingEmbedder struct{ calls int }

func (e *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.calls++
	return []float32{0.6, 0.8}, nil
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *countingEmbedder) Dimension() int    { return 2 }
func (e *countingEmbedder) ModelName() string { return "test-model" }

func TestStore_BacksCachedEmbedder(t *testing.T) {
	s := newTestStore(t, 10, time.Hour)
	inner := &countingEmbedder{}
	cached := embcache.New(inner, s, nil, nil)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "python developer")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "python developer")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}
