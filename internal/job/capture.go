package job

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// CompressOutput brotli-compresses a captured stdout/stderr buffer before
// internal/catalog writes it to the `log` table. Job output is almost always highly repetitive build
// tool chatter, so compressing before the write (rather than relying on
// SQLite page compression, which modernc.org/sqlite doesn't do) keeps
// wake.db from growing unboundedly on noisy toolchains.
func CompressOutput(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("job: compressing output: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("job: closing brotli writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressOutput reverses CompressOutput, used on a cache-hit replay
// to reproduce the original job's terminal
// output without rerunning it.
func DecompressOutput(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("job: decompressing output: %w", err)
	}
	return out, nil
}
