// Package sigstore persists (key, MinHash signature) pairs for a source
// file to a self-delimiting, length-prefixed binary format, decoupling the
// hashing phase from the dedup phase.
package sigstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nearsift/nearsift/domain"
	"github.com/nearsift/nearsift/internal/minhash"
)

// Record is one (key, signature) entry as read back from a signature file.
type Record struct {
	Key       string
	Signature *minhash.Signature
}

// Writer appends (key, signature) records to one signature file in file
// format order: u32 key_len, key_bytes, u32 p, p x u64 hashvalues, all
// little-endian.
type Writer struct {
	f   *os.File
	buf *bufio.Writer
}

// Create creates (or truncates) the signature file at path, creating its
// parent directory if missing.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create signature directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create signature file %s: %w", path, err)
	}
	return &Writer{f: f, buf: bufio.NewWriter(f)}, nil
}

// Write appends one (key, signature) record.
func (w *Writer) Write(key string, sig *minhash.Signature) error {
	keyBytes := []byte(key)
	if err := binary.Write(w.buf, binary.LittleEndian, uint32(len(keyBytes))); err != nil {
		return err
	}
	if _, err := w.buf.Write(keyBytes); err != nil {
		return err
	}
	values := sig.Values()
	if err := binary.Write(w.buf, binary.LittleEndian, uint32(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		if err := binary.Write(w.buf, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered writes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

// Exists reports whether a signature file is already present at path, used
// to implement the skip-minhashing policy.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadAll reads every record from a signature file in order. A truncated
// record is a CorruptSignatureFile condition: the caller is expected to
// abort processing this file and continue to the next.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open signature file %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var records []Record
	for {
		rec, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return records, domain.NewCorruptSignatureFileError(path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readRecord(r io.Reader) (Record, error) {
	var keyLen uint32
	if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
		return Record{}, err
	}
	keyBytes := make([]byte, keyLen)
	if _, err := io.ReadFull(r, keyBytes); err != nil {
		return Record{}, unexpectedEOF(err)
	}

	var numPerm uint32
	if err := binary.Read(r, binary.LittleEndian, &numPerm); err != nil {
		return Record{}, unexpectedEOF(err)
	}
	sig := minhash.NewSignature(int(numPerm))
	values := sig.Values()
	for i := range values {
		if err := binary.Read(r, binary.LittleEndian, &values[i]); err != nil {
			return Record{}, unexpectedEOF(err)
		}
	}
	return Record{Key: string(keyBytes), Signature: sig}, nil
}

// unexpectedEOF normalizes an io.EOF encountered mid-record (rather than at
// a record boundary) to io.ErrUnexpectedEOF so callers can distinguish a
// clean end-of-file from a truncated record.
func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
