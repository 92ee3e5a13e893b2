package banding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearsift/nearsift/internal/minhash"
)

func TestOptimalParamsWithinSignatureBudget(t *testing.T) {
	p := OptimalParams(128, 0.8)
	assert.Greater(t, p.Bands, 0)
	assert.Greater(t, p.Rows, 0)
	assert.LessOrEqual(t, p.SignatureLength(), 128)
}

func TestOptimalParamsDefaultsOnInvalidInput(t *testing.T) {
	p := OptimalParams(0, 0)
	assert.Greater(t, p.Bands, 0)
	assert.Greater(t, p.Rows, 0)
}

func TestFalsePositiveAndNegativeRatesMonotonic(t *testing.T) {
	p := Params{Bands: 16, Rows: 8}
	lowFP := p.FalsePositiveRate(0.1)
	highFP := p.FalsePositiveRate(0.5)
	assert.Less(t, lowFP, highFP)

	lowFN := p.FalseNegativeRate(0.9)
	highFN := p.FalseNegativeRate(0.5)
	assert.Less(t, lowFN, highFN)
}

func TestBandKeysDeterministic(t *testing.T) {
	h := minhash.New(32)
	sig := h.ComputeSignature("one two three four five six seven eight")
	require.NotNil(t, sig)

	p := Params{Bands: 8, Rows: 4}
	keysA := BandKeys(sig, p)
	keysB := BandKeys(sig, p)
	assert.Equal(t, keysA, keysB)
	assert.Len(t, keysA, 8)
}

func TestBandKeysDifferForDifferentSignatures(t *testing.T) {
	h := minhash.New(32)
	sigA := h.ComputeSignature("alpha beta gamma delta epsilon zeta eta theta")
	sigB := h.ComputeSignature("completely different words that share nothing")

	p := Params{Bands: 8, Rows: 4}
	keysA := BandKeys(sigA, p)
	keysB := BandKeys(sigB, p)
	assert.NotEqual(t, keysA, keysB)
}

func TestBandKeysMatchForIdenticalBands(t *testing.T) {
	h := minhash.New(32)
	text := "shared document text across two computations"
	sigA := h.ComputeSignature(text)
	sigB := h.ComputeSignature(text)

	p := Params{Bands: 8, Rows: 4}
	assert.Equal(t, BandKeys(sigA, p), BandKeys(sigB, p))
}
