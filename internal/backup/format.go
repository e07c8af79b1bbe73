package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/orderlattice/internal/sweep"
)

// FormatVersion is the snapshot file version written by Write.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of a decompressed payload (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// Header is the plain-text first line of a snapshot file. It can be read
// without decompressing the payload.
type Header struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Checksum  string            `json:"checksum"`
	RunCount  int               `json:"run_count"`
	RowCount  int               `json:"row_count"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Snapshot is the decompressed payload: every stored run with its rows.
type Snapshot struct {
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	Runs      []sweep.Result `json:"runs"`
}

// Rows returns the total number of rows across all runs.
func (s *Snapshot) Rows() int {
	n := 0
	for _, r := range s.Runs {
		n += len(r.Rows)
	}
	return n
}

// Write stores snap at path as a header line followed by the gzip-compressed
// JSON payload. The header records a SHA-256 of the compressed bytes.
func Write(path string, snap *Snapshot, metadata map[string]string) (*Header, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	header := &Header{
		Version:   FormatVersion,
		CreatedAt: snap.CreatedAt,
		Checksum:  checksum(compressed.Bytes()),
		RunCount:  len(snap.Runs),
		RowCount:  snap.Rows(),
		Metadata:  metadata,
	}
	headerLine, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	w.Write(headerLine)
	w.WriteByte('\n')
	w.Write(compressed.Bytes())
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing snapshot: %w", err)
	}
	return header, nil
}

// Read loads a snapshot file, verifying its checksum before decompressing.
func Read(path string) (*Snapshot, error) {
	header, compressed, err := readVerified(path)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var snap Snapshot
	if err := json.Unmarshal(decompressed, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if len(snap.Runs) != header.RunCount {
		return nil, fmt.Errorf("header promises %d runs, payload holds %d", header.RunCount, len(snap.Runs))
	}
	return &snap, nil
}

// ReadHeader reads only the header line.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return readHeader(bufio.NewReader(f))
}

// VerifyChecksum checks a snapshot's integrity without decompressing it.
func VerifyChecksum(path string) error {
	_, _, err := readVerified(path)
	return err
}

func readVerified(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header, err := readHeader(r)
	if err != nil {
		return nil, nil, err
	}
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if got := checksum(compressed); got != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, got)
	}
	return header, compressed, nil
}

func readHeader(r *bufio.Reader) (*Header, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", header.Version)
	}
	return &header, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}
