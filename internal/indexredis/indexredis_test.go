package indexredis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearsift/nearsift/internal/banding"
	"github.com/nearsift/nearsift/internal/minhash"
)

func newTestIndex(t *testing.T) (*Index, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	params := banding.Params{Bands: 8, Rows: 4}
	idx := New("testcorpus", params, Options{
		Addr:           mr.Host(),
		Port:           port,
		DialTimeout:    time.Second,
		ReadTimeout:    time.Second,
		BackendRetries: 1,
	})
	t.Cleanup(func() { _ = idx.Close() })
	return idx, mr
}

func TestInsertThenQueryFindsSelf(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	h := minhash.New(32)
	sig := h.ComputeSignature("the quick brown fox jumps over the lazy dog")
	require.NotNil(t, sig)

	require.NoError(t, idx.Insert(ctx, "doc-1", sig))

	result, err := idx.Query(ctx, sig)
	require.NoError(t, err)
	assert.Contains(t, result, "doc-1")
}

func TestInsertIsIdempotent(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	h := minhash.New(32)
	sig := h.ComputeSignature("alpha beta gamma delta epsilon")
	require.NotNil(t, sig)

	require.NoError(t, idx.Insert(ctx, "doc-1", sig))
	require.NoError(t, idx.Insert(ctx, "doc-1", sig))

	result, err := idx.Query(ctx, sig)
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestQueryOnEmptyIndexReturnsEmptySet(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	h := minhash.New(32)
	sig := h.ComputeSignature("never seen before")
	require.NotNil(t, sig)

	result, err := idx.Query(ctx, sig)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestQueryForNearDuplicateReturnsValidSet(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	h := minhash.New(32)
	sigA := h.ComputeSignature("the quick brown fox jumps over the lazy dog")
	sigB := h.ComputeSignature("the quick brown fox jumps over the lazy cat")
	require.NotNil(t, sigA)
	require.NotNil(t, sigB)

	require.NoError(t, idx.Insert(ctx, "doc-a", sigA))

	result, err := idx.Query(ctx, sigB)
	require.NoError(t, err)
	// Near-identical texts are highly likely to share at least one band;
	// this isn't a hard guarantee for every possible hash draw, so we only
	// assert the query completes and returns a valid (possibly empty) set.
	assert.NotNil(t, result)
}
