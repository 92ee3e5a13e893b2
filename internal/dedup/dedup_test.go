package dedup

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearsift/nearsift/domain"
	"github.com/nearsift/nearsift/internal/metrics"
	"github.com/nearsift/nearsift/internal/minhash"
	"github.com/nearsift/nearsift/internal/sigstore"
)

type fakeLSHBackend struct {
	buckets map[uint64]map[string]struct{} // unused placeholder for symmetry
	byKey   map[string]*minhash.Signature
}

func newFakeLSHBackend() *fakeLSHBackend {
	return &fakeLSHBackend{byKey: make(map[string]*minhash.Signature)}
}

func (f *fakeLSHBackend) Query(_ context.Context, sig *minhash.Signature) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	for k, s := range f.byKey {
		if minhash.EstimateJaccard(s, sig) == 1.0 {
			result[k] = struct{}{}
		}
	}
	return result, nil
}

func (f *fakeLSHBackend) Insert(_ context.Context, key string, sig *minhash.Signature) error {
	f.byKey[key] = sig
	return nil
}

type fakeSink struct {
	records []domain.DuplicateRecord
}

func (s *fakeSink) Write(rec domain.DuplicateRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func TestLSHCoordinatorFirstDocumentInsertedNoRecord(t *testing.T) {
	backend := newFakeLSHBackend()
	sink := &fakeSink{}
	c := &LSHCoordinator{Backend: backend, Sink: sink}

	h := minhash.New(32)
	sig := h.ComputeSignature("the quick brown fox")

	require.NoError(t, c.ProcessOne(context.Background(), "corpus", "a-1", sig))
	assert.Empty(t, sink.records)
	assert.Contains(t, backend.byKey, "a-1")
}

func TestLSHCoordinatorDuplicateReportedNotInserted(t *testing.T) {
	backend := newFakeLSHBackend()
	sink := &fakeSink{}
	c := &LSHCoordinator{Backend: backend, Sink: sink}

	h := minhash.New(32)
	sig := h.ComputeSignature("the quick brown fox")

	require.NoError(t, c.ProcessOne(context.Background(), "corpus", "a-1", sig))
	require.NoError(t, c.ProcessOne(context.Background(), "corpus", "a-2", sig))

	require.Len(t, sink.records, 1)
	assert.Equal(t, "a-2", sink.records[0].Key)
	assert.Equal(t, "a-1", sink.records[0].DuplicateKey)
	assert.NotContains(t, backend.byKey, "a-2")
}

func TestLSHCoordinatorSelfEchoEmitsNoRecord(t *testing.T) {
	backend := newFakeLSHBackend()
	sink := &fakeSink{}
	c := &LSHCoordinator{Backend: backend, Sink: sink}

	h := minhash.New(32)
	sig := h.ComputeSignature("the quick brown fox")

	// Simulate a partial earlier insert that already recorded the key itself.
	backend.byKey["a-1"] = sig

	require.NoError(t, c.ProcessOne(context.Background(), "corpus", "a-1", sig))
	assert.Empty(t, sink.records)
}

func TestLSHCoordinatorDryRunDoesNotInsert(t *testing.T) {
	backend := newFakeLSHBackend()
	sink := &fakeSink{}
	c := &LSHCoordinator{Backend: backend, Sink: sink, DryRun: true}

	h := minhash.New(32)
	sig := h.ComputeSignature("the quick brown fox")

	require.NoError(t, c.ProcessOne(context.Background(), "corpus", "a-1", sig))
	assert.Empty(t, backend.byKey)
}

func TestLSHCoordinatorRunConsumesChannelInOrder(t *testing.T) {
	backend := newFakeLSHBackend()
	sink := &fakeSink{}
	c := &LSHCoordinator{Backend: backend, Sink: sink}

	h := minhash.New(32)
	sigA := h.ComputeSignature("alpha beta gamma")
	sigB := h.ComputeSignature("alpha beta gamma")

	ch := make(chan sigstore.Record, 2)
	ch <- sigstore.Record{Key: "a-1", Signature: sigA}
	ch <- sigstore.Record{Key: "a-2", Signature: sigB}
	close(ch)

	require.NoError(t, c.Run(context.Background(), "corpus", ch))
	require.Len(t, sink.records, 1)
	assert.Equal(t, "a-2", sink.records[0].Key)
}

type fakeBloomBackend struct {
	seen map[string]struct{}
}

func newFakeBloomBackend() *fakeBloomBackend {
	return &fakeBloomBackend{seen: make(map[string]struct{})}
}

func (f *fakeBloomBackend) Contains(sig *minhash.Signature) bool {
	key := fingerprintFor(sig)
	_, ok := f.seen[key]
	return ok
}

func (f *fakeBloomBackend) Insert(sig *minhash.Signature) {
	f.seen[fingerprintFor(sig)] = struct{}{}
}

func fingerprintFor(sig *minhash.Signature) string {
	s := ""
	for _, v := range sig.Values() {
		s += string(rune(v % 251))
	}
	return s
}

func TestBloomCoordinatorFirstInsertedNoRecord(t *testing.T) {
	backend := newFakeBloomBackend()
	sink := &fakeSink{}
	c := &BloomCoordinator{Backend: backend, Sink: sink}

	h := minhash.New(16)
	sig := h.ComputeSignature("the quick brown fox")

	require.NoError(t, c.ProcessOne("corpus", "a-1", sig))
	assert.Empty(t, sink.records)
}

func TestBloomCoordinatorDuplicateSingleSidedRecord(t *testing.T) {
	backend := newFakeBloomBackend()
	sink := &fakeSink{}
	c := &BloomCoordinator{Backend: backend, Sink: sink}

	h := minhash.New(16)
	sig := h.ComputeSignature("the quick brown fox")

	require.NoError(t, c.ProcessOne("corpus", "a-1", sig))
	require.NoError(t, c.ProcessOne("corpus", "a-2", sig))

	require.Len(t, sink.records, 1)
	assert.Equal(t, "a-2", sink.records[0].Key)
	assert.Empty(t, sink.records[0].DuplicateKey)
}

func TestLSHCoordinatorRecordsMetrics(t *testing.T) {
	backend := newFakeLSHBackend()
	sink := &fakeSink{}
	collector := metrics.NewCollector()
	c := &LSHCoordinator{Backend: backend, Sink: sink, Metrics: collector}

	h := minhash.New(32)
	sig := h.ComputeSignature("the quick brown fox")

	require.NoError(t, c.ProcessOne(context.Background(), "corpus", "a-1", sig))
	require.NoError(t, c.ProcessOne(context.Background(), "corpus", "a-2", sig))

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.DocumentsProcessedTotal.WithLabelValues("corpus")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.DuplicatesFoundTotal.WithLabelValues("corpus")))
}

func TestBloomCoordinatorRecordsMetrics(t *testing.T) {
	backend := newFakeBloomBackend()
	sink := &fakeSink{}
	collector := metrics.NewCollector()
	c := &BloomCoordinator{Backend: backend, Sink: sink, Metrics: collector}

	h := minhash.New(16)
	sig := h.ComputeSignature("the quick brown fox")

	require.NoError(t, c.ProcessOne("corpus", "a-1", sig))
	require.NoError(t, c.ProcessOne("corpus", "a-2", sig))

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.DocumentsProcessedTotal.WithLabelValues("corpus")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.DuplicatesFoundTotal.WithLabelValues("corpus")))
}
