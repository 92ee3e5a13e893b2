// Package indexredis implements the LSH-Redis Index Backend: b mappings
// from band-key to a set of document-keys, backed by Redis SET primitives.
package indexredis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nearsift/nearsift/domain"
	"github.com/nearsift/nearsift/internal/banding"
	"github.com/nearsift/nearsift/internal/minhash"
)

// Index is the LSH-Redis backend for one basename namespace.
type Index struct {
	client   *redis.Client
	basename string
	params   banding.Params
	retries  int
}

// Options configures the underlying Redis client and retry policy.
type Options struct {
	Addr           string
	Port           int
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	BackendRetries int
}

// New connects to Redis and returns an Index namespaced by basename. The
// connection is pooled by go-redis; one Index owns one pooled client for
// the lifetime of a Coordinator process.
func New(basename string, params banding.Params, opts Options) *Index {
	addr := opts.Addr
	if !strings.Contains(addr, ":") {
		port := opts.Port
		if port == 0 {
			port = 6379
		}
		addr = fmt.Sprintf("%s:%d", addr, port)
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: opts.DialTimeout,
		ReadTimeout: opts.ReadTimeout,
	})

	retries := opts.BackendRetries
	if retries <= 0 {
		retries = 3
	}

	return &Index{
		client:   client,
		basename: basename,
		params:   params,
		retries:  retries,
	}
}

// Close releases the underlying connection pool.
func (idx *Index) Close() error {
	return idx.client.Close()
}

// bucketKey forms the Redis set name for band i's band-key value, the
// <basename>_bucket_<i>_<hex(bytes)> convention from the wire protocol.
func (idx *Index) bucketKey(band int, bandValue uint64) string {
	return fmt.Sprintf("%s_bucket_%d_%x", idx.basename, band, bandValue)
}

// Query computes the b band-keys for signature and returns the union of
// document-keys across all b band buckets.
func (idx *Index) Query(ctx context.Context, sig *minhash.Signature) (map[string]struct{}, error) {
	keys := banding.BandKeys(sig, idx.params)
	bucketNames := make([]string, len(keys))
	for i, k := range keys {
		bucketNames[i] = idx.bucketKey(i, k)
	}

	result := make(map[string]struct{})
	for _, name := range bucketNames {
		members, err := idx.withRetry(ctx, func() ([]string, error) {
			return idx.client.SMembers(ctx, name).Result()
		})
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			result[m] = struct{}{}
		}
	}
	return result, nil
}

// Insert adds documentKey into each of the b band buckets for signature.
// Idempotent: SADD on an already-present member is a no-op.
func (idx *Index) Insert(ctx context.Context, documentKey string, sig *minhash.Signature) error {
	keys := banding.BandKeys(sig, idx.params)
	for i, k := range keys {
		name := idx.bucketKey(i, k)
		_, err := idx.withRetry(ctx, func() ([]string, error) {
			return nil, idx.client.SAdd(ctx, name, documentKey).Err()
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// withRetry retries a Redis operation up to idx.retries times with bounded
// exponential backoff before surfacing a BackendTransient error. redis.Nil
// is never retried; it means "not found", not a failure.
func (idx *Index) withRetry(ctx context.Context, op func() ([]string, error)) ([]string, error) {
	var lastErr error
	backoff := 50 * time.Millisecond
	for attempt := 0; attempt <= idx.retries; attempt++ {
		result, err := op()
		if err == nil || err == redis.Nil {
			return result, nil
		}
		lastErr = err
		if attempt < idx.retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, domain.NewBackendTransientError(
		fmt.Sprintf("redis operation failed after %d retries", idx.retries), lastErr)
}
