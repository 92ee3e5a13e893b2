// Package banding derives LSH band/row parameters and computes the
// deterministic band keys that both index backends (Redis-backed buckets
// and per-band Bloom filters) bucket documents by.
package banding

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/nearsift/nearsift/internal/minhash"
)

// Params is a banding configuration: a signature of length b*r is split into
// b bands of r rows each.
type Params struct {
	Bands int
	Rows  int
}

// candidateRows bounds the search space when deriving optimal parameters;
// rows per band rarely needs to exceed this to hit a useful threshold.
const candidateRows = 16

// OptimalParams searches band/row combinations with bands*rows <= numPerm
// and returns the one minimizing a similarity-weighted sum of false-positive
// and false-negative probability across a grid of similarity values, which
// approximates the integral of the S-curve 1-(1-s^r)^b against a target
// similarity threshold. This tends to pick configurations that cut sharply
// near threshold, unlike simply solving threshold = (1/b)^(1/r) for the
// nearest integer b, r.
func OptimalParams(numPerm int, threshold float64) Params {
	if numPerm <= 0 {
		numPerm = minhash.DefaultNumPerm
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}

	best := Params{Bands: 1, Rows: numPerm}
	bestCost := math.Inf(1)

	for rows := 1; rows <= candidateRows && rows <= numPerm; rows++ {
		bands := numPerm / rows
		if bands < 1 {
			continue
		}
		cost := weightedErrorCost(bands, rows, threshold)
		if cost < bestCost {
			bestCost = cost
			best = Params{Bands: bands, Rows: rows}
		}
	}
	return best
}

// weightedErrorCost integrates false-negative probability for similarities
// at or above threshold and false-positive probability for similarities
// below threshold, sampled on a fixed grid.
func weightedErrorCost(bands, rows int, threshold float64) float64 {
	const steps = 100
	total := 0.0
	for i := 1; i < steps; i++ {
		s := float64(i) / float64(steps)
		probBandMatches := math.Pow(s, float64(rows))
		probAnyBandMatches := 1.0 - math.Pow(1.0-probBandMatches, float64(bands))
		if s >= threshold {
			// false negative: should have matched but didn't
			total += 1.0 - probAnyBandMatches
		} else {
			// false positive: matched but shouldn't have
			total += probAnyBandMatches
		}
	}
	return total / float64(steps)
}

// FalsePositiveRate estimates P(collide in some band | true similarity s)
// for s below the similarity threshold the parameters were chosen for.
func (p Params) FalsePositiveRate(similarity float64) float64 {
	if similarity <= 0 || similarity >= 1 {
		return 0.0
	}
	probBandMatches := math.Pow(similarity, float64(p.Rows))
	return 1.0 - math.Pow(1.0-probBandMatches, float64(p.Bands))
}

// FalseNegativeRate estimates P(no band collides | true similarity s) for s
// at or above the similarity threshold the parameters were chosen for.
func (p Params) FalseNegativeRate(similarity float64) float64 {
	if similarity <= 0 || similarity >= 1 {
		return 1.0
	}
	probBandMatches := math.Pow(similarity, float64(p.Rows))
	return math.Pow(1.0-probBandMatches, float64(p.Bands))
}

// SignatureLength returns the minimum signature length this configuration
// needs: bands*rows.
func (p Params) SignatureLength() int { return p.Bands * p.Rows }

// BandKeys splits a signature into p.Bands band keys, one per band, each a
// deterministic 8-byte digest of that band's rows. Both index backends use
// these as their bucketing key.
func BandKeys(sig *minhash.Signature, p Params) []uint64 {
	values := sig.Values()
	keys := make([]uint64, p.Bands)
	for band := 0; band < p.Bands; band++ {
		keys[band] = bandDigest(values, band, p.Rows)
	}
	return keys
}

// bandDigest hashes the r signature values belonging to one band into a
// single 64-bit key, little-endian byte order throughout so the digest is
// stable across platforms.
func bandDigest(values []uint64, band, rows int) uint64 {
	start := band * rows
	end := start + rows
	if end > len(values) {
		end = len(values)
	}

	buf := make([]byte, 0, (end-start)*8)
	for i := start; i < end; i++ {
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], values[i])
		buf = append(buf, tmp[:]...)
	}
	return xxhash.Sum64(buf)
}
