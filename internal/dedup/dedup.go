// Package dedup implements the Dedup Coordinator: the query-then-maybe-insert
// protocol that decides, for each arriving (key, signature) pair, whether it
// duplicates something already indexed, and — depending on the backend — to
// insert it or report the duplicate relationship. Workers compute
// signatures only; the Coordinator alone mutates the Index Backend, per
// explicit backend handles rather than a process-global index.
package dedup

import (
	"context"
	"time"

	"github.com/nearsift/nearsift/domain"
	"github.com/nearsift/nearsift/internal/metrics"
	"github.com/nearsift/nearsift/internal/minhash"
	"github.com/nearsift/nearsift/internal/sigstore"
)

// LSHBackend is the subset of internal/indexredis.Index the Coordinator
// needs, kept as an interface so the Coordinator can be driven by fakes in
// tests without a live Redis.
type LSHBackend interface {
	Query(ctx context.Context, sig *minhash.Signature) (map[string]struct{}, error)
	Insert(ctx context.Context, key string, sig *minhash.Signature) error
}

// BloomBackend is the subset of internal/indexbloom.Index the Coordinator
// needs.
type BloomBackend interface {
	Contains(sig *minhash.Signature) bool
	Insert(sig *minhash.Signature)
}

// Sink receives emitted duplicate records, e.g. internal/report.Writer.
type Sink interface {
	Write(rec domain.DuplicateRecord) error
}

// LSHCoordinator drives the query-then-maybe-insert protocol against an
// LSH-Redis backend. It is not safe for concurrent use: the query-then-
// insert sequence must be serialized per document to preserve the
// at-most-one-indexed-instance invariant.
type LSHCoordinator struct {
	Backend LSHBackend
	Sink    Sink
	// DryRun checks a corpus against the index without inserting anything
	// new (read-only dedup); DuplicateRecords are still emitted.
	DryRun bool
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Collector
}

// ProcessOne runs the LSH-Redis policy for one (key, signature) pair: if
// the query result is empty, or is exactly {key} (a self-echo from an
// earlier partial insert), the document is inserted. A DuplicateRecord is
// emitted for every other result member.
func (c *LSHCoordinator) ProcessOne(ctx context.Context, corpus, key string, sig *minhash.Signature) error {
	if c.Metrics != nil {
		c.Metrics.DocumentsProcessedTotal.WithLabelValues(corpus).Inc()
	}

	queryStart := time.Now()
	result, err := c.Backend.Query(ctx, sig)
	c.observeLatency("query", queryStart)
	if err != nil {
		return err
	}

	_, selfPresent := result[key]
	shouldInsert := len(result) == 0 || (len(result) == 1 && selfPresent)

	for d := range result {
		if d == key {
			continue
		}
		if c.Metrics != nil {
			c.Metrics.DuplicatesFoundTotal.WithLabelValues(corpus).Inc()
		}
		if err := c.Sink.Write(domain.DuplicateRecord{Corpus: corpus, Key: key, DuplicateKey: d}); err != nil {
			return err
		}
	}

	if shouldInsert && !c.DryRun {
		insertStart := time.Now()
		err := c.Backend.Insert(ctx, key, sig)
		c.observeLatency("insert", insertStart)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *LSHCoordinator) observeLatency(op string, start time.Time) {
	if c.Metrics == nil {
		return
	}
	c.Metrics.BackendLatencySeconds.WithLabelValues("lsh", op).Observe(time.Since(start).Seconds())
}

// Run consumes records sequentially from a lazy, non-restartable channel —
// the Signature Store's output, or a live hashing stream — processing each
// exactly once in arrival order.
func (c *LSHCoordinator) Run(ctx context.Context, corpus string, records <-chan sigstore.Record) error {
	for rec := range records {
		if err := c.ProcessOne(ctx, corpus, rec.Key, rec.Signature); err != nil {
			return err
		}
	}
	return nil
}

// BloomCoordinator drives the query-then-maybe-insert protocol against an
// LSHBloom backend. Like LSHCoordinator, it must not be used concurrently.
type BloomCoordinator struct {
	Backend BloomBackend
	Sink    Sink
	DryRun  bool
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Collector
}

// ProcessOne runs the LSHBloom policy for one (key, signature) pair: if the
// band-key is already present, a single-sided DuplicateRecord is emitted
// and the document is NOT inserted (no second endpoint is available,
// consistent with the Bloom filter's membership-only recall). Otherwise
// the document is inserted and nothing is emitted.
func (c *BloomCoordinator) ProcessOne(corpus, key string, sig *minhash.Signature) error {
	if c.Metrics != nil {
		c.Metrics.DocumentsProcessedTotal.WithLabelValues(corpus).Inc()
	}

	containsStart := time.Now()
	found := c.Backend.Contains(sig)
	if c.Metrics != nil {
		c.Metrics.BackendLatencySeconds.WithLabelValues("bloom", "contains").Observe(time.Since(containsStart).Seconds())
	}

	if found {
		if c.Metrics != nil {
			c.Metrics.DuplicatesFoundTotal.WithLabelValues(corpus).Inc()
		}
		return c.Sink.Write(domain.DuplicateRecord{Corpus: corpus, Key: key})
	}
	if !c.DryRun {
		insertStart := time.Now()
		c.Backend.Insert(sig)
		if c.Metrics != nil {
			c.Metrics.BackendLatencySeconds.WithLabelValues("bloom", "insert").Observe(time.Since(insertStart).Seconds())
		}
	}
	return nil
}

// Run consumes records sequentially, same contract as LSHCoordinator.Run.
func (c *BloomCoordinator) Run(corpus string, records <-chan sigstore.Record) error {
	for rec := range records {
		if err := c.ProcessOne(corpus, rec.Key, rec.Signature); err != nil {
			return err
		}
	}
	return nil
}
