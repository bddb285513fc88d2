package embcache

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (e *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.calls++
	return e.vector, e.err
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (e *countingEmbedder) Dimension() int    { return len(e.vector) }
func (e *countingEmbedder) ModelName() string { return "test-model" }

type memStore struct {
	data   map[string][]byte
	setErr error
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "cache_total"}, []string{"result"})
}

func TestCachedEmbedder_MissThenHit(t *testing.T) {
	inner := &countingEmbedder{vector: []float32{0.25, -0.5, 1}}
	counter := newCounter()
	c := New(inner, &memStore{data: map[string][]byte{}}, counter, nil)

	first, err := c.Embed(context.Background(), "query: python")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "query: python")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.InDelta(t, 1, testutil.ToFloat64(counter.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(counter.WithLabelValues("miss")), 0)
}

func TestCachedEmbedder_InnerError(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("provider down")}
	c := New(inner, &memStore{data: map[string][]byte{}}, nil, nil)

	_, err := c.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestCachedEmbedder_SetFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	inner := &countingEmbedder{vector: []float32{1}}
	c := New(inner, &memStore{data: map[string][]byte{}, setErr: errors.New("readonly")}, nil, zap.New(core))

	vec, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, 1, logs.FilterMessage("failed to cache embedding").Len())
}

func TestCachedEmbedder_CorruptEntryFallsThrough(t *testing.T) {
	inner := &countingEmbedder{vector: []float32{1, 2}}
	store := &memStore{data: map[string][]byte{}}
	c := New(inner, store, nil, nil)
	store.data[c.key("x")] = []byte{1, 2, 3}

	vec, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	assert.Equal(t, 1, inner.calls)
}

func TestEncodeDecode(t *testing.T) {
	in := []float32{0.1, -3.5, 0}
	out, err := decode(encode(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
