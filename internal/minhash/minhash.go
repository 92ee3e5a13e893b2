// Package minhash computes fixed-length MinHash signatures over a document's
// whitespace-tokenized word set, used to estimate Jaccard similarity without
// storing the token sets themselves.
package minhash

import (
	"math/bits"
	"math/rand"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// mersennePrime is 2^61 - 1, the modulus used for the universal hash family
// h(x) = (a*x + b) mod p, mod 2^32-sized down to a uint64 result.
const mersennePrime = (uint64(1) << 61) - 1

// DefaultSeed is the fixed seed used to derive hash-function parameters when
// none is supplied. Runs using the same seed and num_perm produce bit-identical
// signatures across processes and platforms, per the reproducibility invariant.
const DefaultSeed int64 = 0x6d696e68617368 // "minhash" in hex-ish form, arbitrary but fixed

// DefaultNumPerm is the default signature length when the caller does not
// specify one.
const DefaultNumPerm = 128

// Signature is a fixed-length vector of minimum permuted hash values for a
// document's token set.
type Signature struct {
	values []uint64
}

// NewSignature allocates a signature of length numPerm with every slot
// initialized to the maximum uint64, the MinHash identity element.
func NewSignature(numPerm int) *Signature {
	s := &Signature{values: make([]uint64, numPerm)}
	for i := range s.values {
		s.values[i] = ^uint64(0)
	}
	return s
}

// Values returns the underlying hash values. Callers must not mutate the
// returned slice.
func (s *Signature) Values() []uint64 { return s.values }

// Len returns the number of hash functions (num_perm) in the signature.
func (s *Signature) Len() int { return len(s.values) }

// permutation holds one (a, b) pair of a universal hash function over the
// Mersenne-prime field.
type permutation struct {
	a, b uint64
}

// Hasher computes MinHash signatures using a fixed set of num_perm
// deterministic hash permutations.
type Hasher struct {
	numPerm      int
	permutations []permutation
}

// New creates a Hasher with the given signature length, deriving hash
// function parameters from DefaultSeed.
func New(numPerm int) *Hasher {
	return NewWithSeed(numPerm, DefaultSeed)
}

// NewWithSeed creates a Hasher whose hash permutations are derived from the
// given seed, for reproducible signatures across independent runs or tests.
func NewWithSeed(numPerm int, seed int64) *Hasher {
	if numPerm <= 0 {
		numPerm = DefaultNumPerm
	}
	h := &Hasher{
		numPerm:      numPerm,
		permutations: make([]permutation, numPerm),
	}
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < numPerm; i++ {
		a := uint64(rng.Int63n(int64(mersennePrime-1))) + 1
		b := uint64(rng.Int63n(int64(mersennePrime)))
		h.permutations[i] = permutation{a: a, b: b}
	}
	return h
}

// NumPerm returns the configured signature length.
func (h *Hasher) NumPerm() int { return h.numPerm }

// ComputeSignature tokenizes text by whitespace and returns its MinHash
// signature. It returns nil iff the token set is empty, matching the
// EmptyTokenSet skip policy: callers must treat a nil signature as "no
// signature, no index mutation, no record".
func (h *Hasher) ComputeSignature(text string) *Signature {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	sig := NewSignature(h.numPerm)
	for token := range tokens {
		base := xxhash.Sum64String(token)
		for i, perm := range h.permutations {
			v := mulModMersenne(perm.a, base)
			v = (v + perm.b) % mersennePrime
			v &= 0xFFFFFFFF // fold into 32-bit range per the universal-hashing step, then widen
			if v < sig.values[i] {
				sig.values[i] = v
			}
		}
	}
	return sig
}

// tokenize splits text on runs of whitespace and deduplicates into a set.
// No casefolding or Unicode normalization is applied, matching the source
// system's behavior; downstream consumers should be aware.
func tokenize(text string) map[string]struct{} {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// mulModMersenne computes (a*b) mod (2^61 - 1) without overflow, exploiting
// 2^61 ≡ 1 (mod p) to fold the high 64 bits of the 128-bit product back in.
func mulModMersenne(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	lo61 := lo & mersennePrime
	rest := (lo >> 61) + (hi << 3)
	sum := lo61 + rest
	for sum >= mersennePrime {
		sum -= mersennePrime
	}
	return sum
}

// EstimateJaccard returns the fraction of matching signature positions
// between a and b, the MinHash estimator of Jaccard similarity of their
// underlying token sets. Signatures of differing length are incompatible
// and estimate to 0.
func EstimateJaccard(a, b *Signature) float64 {
	if a == nil || b == nil || a.Len() != b.Len() || a.Len() == 0 {
		return 0.0
	}
	matches := 0
	for i := range a.values {
		if a.values[i] == b.values[i] {
			matches++
		}
	}
	return float64(matches) / float64(a.Len())
}

// ExactJaccard computes the true Jaccard similarity between two token sets,
// used in tests to validate the MinHash estimator's accuracy.
func ExactJaccard(tokensA, tokensB []string) float64 {
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1.0
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}
	setA := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}
	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}
