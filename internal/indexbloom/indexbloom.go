// Package indexbloom implements the LSHBloom Index Backend: one Bloom
// filter per LSH band, each backed by a memory-mapped file, storing only
// band-key membership rather than document identities.
package indexbloom

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	"github.com/nearsift/nearsift/domain"
	"github.com/nearsift/nearsift/internal/banding"
	"github.com/nearsift/nearsift/internal/constants"
	"github.com/nearsift/nearsift/internal/minhash"
)

const (
	magic         = "NSBF"
	formatVersion = uint32(1)
	// headerSize reserves 32 bytes even though the fields below only need
	// 28, leaving room to grow the header without relayouting the bit array.
	headerSize = 32
)

// header is the fixed on-disk preamble of one band-<i>.bf file.
type header struct {
	M         uint64 // bit-array size
	K         uint32 // number of hash functions
	NInserted uint64
}

func (h header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], formatVersion)
	binary.LittleEndian.PutUint64(buf[8:16], h.M)
	binary.LittleEndian.PutUint32(buf[16:20], h.K)
	binary.LittleEndian.PutUint64(buf[20:28], h.NInserted)
	return buf
}

func unmarshalHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, fmt.Errorf("truncated header: %d bytes", len(buf))
	}
	if string(buf[0:4]) != magic {
		return header{}, fmt.Errorf("bad magic %q", buf[0:4])
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != formatVersion {
		return header{}, fmt.Errorf("unsupported format version %d", v)
	}
	return header{
		M:         binary.LittleEndian.Uint64(buf[8:16]),
		K:         binary.LittleEndian.Uint32(buf[16:20]),
		NInserted: binary.LittleEndian.Uint64(buf[20:28]),
	}, nil
}

// bandFilter wraps one memory-mapped band-<i>.bf file.
type bandFilter struct {
	file   *os.File
	region mmap.MMap
	hdr    header
}

// filterParams derives the per-band Bloom filter sizing (m, k) from the
// expected insertion count and per-band false-positive target.
func filterParams(n int, fpBand float64) (m uint64, k uint32) {
	nf := float64(n)
	mf := -nf * math.Log(fpBand) / (math.Ln2 * math.Ln2)
	m = uint64(math.Ceil(mf))
	if m < 8 {
		m = 8
	}
	kf := (float64(m) / nf) * math.Ln2
	k = uint32(math.Round(kf))
	if k < 1 {
		k = 1
	}
	return m, k
}

// perBandFalsePositive derives fp_band from the overall target fp so that
// the probability all b bands falsely report membership is <= fp.
func perBandFalsePositive(fp float64, bands int) float64 {
	return 1.0 - math.Pow(1.0-fp, 1.0/float64(bands))
}

// openBandFilter opens or creates path sized for (m, k). If the file
// already exists, its header is validated against the expected (m, k);
// a mismatch is a BackendFatal condition (fail startup).
func openBandFilter(path string, m uint64, k uint32) (*bandFilter, error) {
	byteLen := int64((m + 7) / 8)
	total := int64(headerSize) + byteLen

	existed := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		existed = false
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open bloom file %s: %w", path, err)
	}

	if !existed {
		if err := f.Truncate(total); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to allocate bloom file %s: %w", path, err)
		}
	}

	region, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap bloom file %s: %w", path, err)
	}

	bf := &bandFilter{file: f, region: region}
	if !existed {
		bf.hdr = header{M: m, K: k}
		copy(bf.region[:headerSize], bf.hdr.marshal())
	} else {
		hdr, err := unmarshalHeader(bf.region[:headerSize])
		if err != nil {
			bf.region.Unmap()
			f.Close()
			return nil, domain.NewBackendFatalError(fmt.Sprintf("corrupt bloom header in %s", path), err)
		}
		if hdr.M != m || hdr.K != k {
			bf.region.Unmap()
			f.Close()
			return nil, domain.NewBackendFatalError(
				fmt.Sprintf("bloom parameters changed for %s: file has m=%d,k=%d, expected m=%d,k=%d",
					path, hdr.M, hdr.K, m, k), nil)
		}
		bf.hdr = hdr
	}
	return bf, nil
}

func (bf *bandFilter) bits() []byte { return bf.region[headerSize:] }

// testBit reports whether bit position pos of the filter is set.
func (bf *bandFilter) testBit(pos uint64) bool {
	b := bf.bits()
	byteIdx := pos / 8
	bitMask := byte(1) << (pos % 8)
	return b[byteIdx]&bitMask != 0
}

// setBit sets bit position pos with a single-byte OR on the memory-mapped
// region. The read-modify-write is not atomic: concurrent setBit calls on
// the same byte can lose a bit.
func (bf *bandFilter) setBit(pos uint64) {
	b := bf.bits()
	byteIdx := pos / 8
	bitMask := byte(1) << (pos % 8)
	b[byteIdx] |= bitMask
}

func (bf *bandFilter) incrementInserted() {
	bf.hdr.NInserted++
	binary.LittleEndian.PutUint64(bf.region[20:28], bf.hdr.NInserted)
}

func (bf *bandFilter) flush() error {
	return bf.region.Flush()
}

func (bf *bandFilter) close() error {
	if err := bf.region.Unmap(); err != nil {
		bf.file.Close()
		return err
	}
	return bf.file.Close()
}

// Index is the LSHBloom backend: one Bloom filter per band.
type Index struct {
	filters []*bandFilter
	params  banding.Params
}

// Open opens (creating if absent) the per-band backing files under
// saveDir, sized for n expected insertions at overall false-positive
// target fp, per the derivation in the storage-layout contract.
func Open(saveDir string, params banding.Params, n int, fp float64) (*Index, error) {
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bloom save directory %s: %w", saveDir, err)
	}

	fpBand := perBandFalsePositive(fp, params.Bands)
	m, k := filterParams(n, fpBand)

	filters := make([]*bandFilter, params.Bands)
	for i := 0; i < params.Bands; i++ {
		path := filepath.Join(saveDir, fmt.Sprintf("%s%d%s", constants.BloomFilePrefix, i, constants.BloomFileSuffix))
		bf, err := openBandFilter(path, m, k)
		if err != nil {
			for _, opened := range filters[:i] {
				if opened != nil {
					opened.close()
				}
			}
			return nil, err
		}
		filters[i] = bf
	}

	return &Index{filters: filters, params: params}, nil
}

// positions computes the k hash positions in [0, m) for one band's digest,
// using double hashing h_j = (h1 + j*h2) mod m.
func positions(digest uint64, k uint32, m uint64) []uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], digest)
	h1 := xxhash.Sum64(buf[:])
	h2 := xxhash.Sum64String(string(buf[:]) + "salt")

	out := make([]uint64, k)
	for j := uint32(0); j < k; j++ {
		out[j] = (h1 + uint64(j)*h2) % m
	}
	return out
}

// Contains reports whether signature's band-key is present in any band
// filter: the standard any-band-match LSH semantic, whose false-positive
// budget is accounted for by the per-band fp derivation at construction.
func (idx *Index) Contains(sig *minhash.Signature) bool {
	keys := banding.BandKeys(sig, idx.params)
	for i, digest := range keys {
		bf := idx.filters[i]
		allSet := true
		for _, pos := range positions(digest, bf.hdr.K, bf.hdr.M) {
			if !bf.testBit(pos) {
				allSet = false
				break
			}
		}
		if allSet {
			return true
		}
	}
	return false
}

// Insert sets the k bits for each band's band-key and increments each
// band's insertion counter. Bloom filters never support removal; the
// index only ever grows.
func (idx *Index) Insert(sig *minhash.Signature) {
	keys := banding.BandKeys(sig, idx.params)
	for i, digest := range keys {
		bf := idx.filters[i]
		for _, pos := range positions(digest, bf.hdr.K, bf.hdr.M) {
			bf.setBit(pos)
		}
		bf.incrementInserted()
	}
}

// Flush issues an explicit msync-equivalent flush on every band file,
// required on clean shutdown since mmap'd writes are otherwise flushed to
// disk asynchronously by the OS on its own schedule.
func (idx *Index) Flush() error {
	for i, bf := range idx.filters {
		if err := bf.flush(); err != nil {
			return fmt.Errorf("failed to flush band %d: %w", i, err)
		}
	}
	return nil
}

// Close flushes and unmaps every band file.
func (idx *Index) Close() error {
	if err := idx.Flush(); err != nil {
		return err
	}
	for i, bf := range idx.filters {
		if err := bf.close(); err != nil {
			return fmt.Errorf("failed to close band %d: %w", i, err)
		}
	}
	return nil
}
