package util

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	snapshotMagic   = "DSSSNAP\x00" // File format identifier
	snapshotVersion = 1             // Snapshot format version
	bufferSize      = 1024 * 1024   // 1 MB read / write buffer

	// MaxEntrySize is the largest key or value a snapshot can hold
	MaxEntrySize = 64 << 20
)

// --------------------------------------------------------------------------
// Snapshot Writer
// --------------------------------------------------------------------------

// SnapshotWriter writes the engine independent snapshot format:
//
//	magic (8 bytes) | version (uint8) | count (uint64)
//	count * [ keyLen (uint32) | key | valueLen (uint32) | value ]
//
// All integers are little endian. The number of entries must be known up
// front, so callers collect a consistent view of the database before writing.
type SnapshotWriter struct {
	bw      *bufio.Writer
	pending uint64
}

// NewSnapshotWriter writes the snapshot header for count entries.
func NewSnapshotWriter(w io.Writer, count uint64) (*SnapshotWriter, error) {
	bw := bufio.NewWriterSize(w, bufferSize)

	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return nil, err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return nil, err
	}
	if err := binary.Write(bw, binary.LittleEndian, count); err != nil {
		return nil, err
	}

	return &SnapshotWriter{bw: bw, pending: count}, nil
}

// Write appends one entry.
func (s *SnapshotWriter) Write(key, value string) error {
	if s.pending == 0 {
		return fmt.Errorf("snapshot: more entries written than announced")
	}
	s.pending--

	if err := writeString(s.bw, key); err != nil {
		return err
	}
	return writeString(s.bw, value)
}

// Close flushes the buffer. It fails if fewer entries were written than announced.
func (s *SnapshotWriter) Close() error {
	if s.pending != 0 {
		return fmt.Errorf("snapshot: %d announced entries missing", s.pending)
	}
	return s.bw.Flush()
}

// WriteSnapshot writes all entries of m as a snapshot.
func WriteSnapshot(w io.Writer, m map[string]string) error {
	sw, err := NewSnapshotWriter(w, uint64(len(m)))
	if err != nil {
		return err
	}
	for _, k := range SortedKeys(m) {
		if err := sw.Write(k, m[k]); err != nil {
			return err
		}
	}
	return sw.Close()
}

// --------------------------------------------------------------------------
// Snapshot Reader
// --------------------------------------------------------------------------

// ReadSnapshot verifies the snapshot header and calls fn for every entry in order.
func ReadSnapshot(r io.Reader, fn func(key, value string) error) error {
	br := bufio.NewReaderSize(r, bufferSize)

	// Read and verify magic number
	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return err
	}
	if string(magic) != snapshotMagic {
		return fmt.Errorf("invalid snapshot format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %d (expected %d)", version, snapshotVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	for i := uint64(0); i < count; i++ {
		key, err := readString(br)
		if err != nil {
			return fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		value, err := readString(br)
		if err != nil {
			return fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func writeString(w *bufio.Writer, s string) error {
	if len(s) > MaxEntrySize {
		return fmt.Errorf("snapshot: entry of %d bytes exceeds the limit of %d bytes", len(s), MaxEntrySize)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	// the length comes from the stream, a corrupt one must not allocate gigabytes
	if n > MaxEntrySize {
		return "", fmt.Errorf("snapshot: entry length %d exceeds the limit of %d bytes", n, MaxEntrySize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
