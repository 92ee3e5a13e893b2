package minhash

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasherDefaults(t *testing.T) {
	h := New(0)
	assert.Equal(t, DefaultNumPerm, h.NumPerm())

	h2 := New(64)
	assert.Equal(t, 64, h2.NumPerm())
	assert.Len(t, h2.permutations, 64)
}

func TestComputeSignatureEmptyTokenSet(t *testing.T) {
	h := New(32)
	assert.Nil(t, h.ComputeSignature(""))
	assert.Nil(t, h.ComputeSignature("   \t\n  "))
}

func TestComputeSignatureDeterministic(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"

	h1 := New(128)
	h2 := New(128)

	sig1 := h1.ComputeSignature(text)
	sig2 := h2.ComputeSignature(text)

	require.NotNil(t, sig1)
	require.NotNil(t, sig2)
	assert.Equal(t, sig1.Values(), sig2.Values())
}

func TestComputeSignatureSameSeedAcrossInstances(t *testing.T) {
	text := "alpha beta gamma delta epsilon"
	a := NewWithSeed(64, 42).ComputeSignature(text)
	b := NewWithSeed(64, 42).ComputeSignature(text)
	assert.Equal(t, a.Values(), b.Values())
}

func TestComputeSignatureDifferentSeedDiffers(t *testing.T) {
	text := "alpha beta gamma delta epsilon zeta eta theta"
	a := NewWithSeed(64, 1).ComputeSignature(text)
	b := NewWithSeed(64, 2).ComputeSignature(text)
	assert.NotEqual(t, a.Values(), b.Values())
}

func TestComputeSignatureTokenOrderIndependent(t *testing.T) {
	h := New(64)
	sigA := h.ComputeSignature("red green blue yellow")
	sigB := h.ComputeSignature("yellow blue green red")
	assert.Equal(t, sigA.Values(), sigB.Values())
}

func TestComputeSignatureIdenticalTextsMatchFully(t *testing.T) {
	h := New(128)
	text := "lorem ipsum dolor sit amet consectetur adipiscing elit"
	sigA := h.ComputeSignature(text)
	sigB := h.ComputeSignature(text)
	require.NotNil(t, sigA)
	require.NotNil(t, sigB)
	assert.Equal(t, 1.0, EstimateJaccard(sigA, sigB))
}

func TestComputeSignatureDegenerateSinglePermutation(t *testing.T) {
	h := New(1)
	sig := h.ComputeSignature("a single document with several words")
	require.NotNil(t, sig)
	assert.Equal(t, 1, sig.Len())
}

func TestEstimateJaccardMismatchedLengths(t *testing.T) {
	h1 := New(16)
	h2 := New(32)
	sigA := h1.ComputeSignature("one two three")
	sigB := h2.ComputeSignature("one two three")
	assert.Equal(t, 0.0, EstimateJaccard(sigA, sigB))
}

func TestEstimateJaccardNilSignatures(t *testing.T) {
	assert.Equal(t, 0.0, EstimateJaccard(nil, nil))
}

func TestExactJaccard(t *testing.T) {
	a := []string{"a", "b", "c"}
	b := []string{"b", "c", "d"}
	// intersection {b,c} = 2, union {a,b,c,d} = 4
	assert.InDelta(t, 0.5, ExactJaccard(a, b), 1e-9)
	assert.Equal(t, 1.0, ExactJaccard(nil, nil))
	assert.Equal(t, 0.0, ExactJaccard(a, nil))
}

// TestAccuracyBound validates that, for reasonably sized token sets, the
// MinHash estimate with num_perm=128 stays within a tight margin of the
// true Jaccard similarity, the accuracy invariant the signature length is
// chosen to meet.
func TestAccuracyBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vocab := make([]string, 300)
	for i := range vocab {
		vocab[i] = fmt.Sprintf("tok%d", i)
	}

	sample := func(n int) []string {
		perm := rng.Perm(len(vocab))[:n]
		out := make([]string, n)
		for i, idx := range perm {
			out[i] = vocab[idx]
		}
		return out
	}

	h := New(128)
	const trials = 20
	maxErr := 0.0
	for i := 0; i < trials; i++ {
		setA := sample(80)
		setB := sample(80)
		exact := ExactJaccard(setA, setB)

		sigA := h.ComputeSignature(strings.Join(setA, " "))
		sigB := h.ComputeSignature(strings.Join(setB, " "))
		estimate := EstimateJaccard(sigA, sigB)

		if err := math.Abs(exact - estimate); err > maxErr {
			maxErr = err
		}
	}

	assert.Less(t, maxErr, 0.25, "estimate should track exact similarity within a reasonable margin across trials")
}

func TestMulModMersenneNeverExceedsModulus(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 1000; i++ {
		a := uint64(rng.Int63n(int64(mersennePrime)))
		b := uint64(rng.Int63n(int64(mersennePrime)))
		got := mulModMersenne(a, b)
		assert.Less(t, got, mersennePrime)
	}
}
