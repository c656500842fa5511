package utils

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// CompressPayload gzips a raw provider payload before it is persisted to
// blob storage. Payloads under the threshold are stored as-is since the
// gzip header overhead outweighs the gain.
func CompressPayload(data []byte) ([]byte, bool, error) {
	if len(data) < 512 {
		return data, false, nil
	}

	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, false, fmt.Errorf("failed to write to gzip writer: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, false, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), true, nil
}

// DecompressPayload reverses CompressPayload.
func DecompressPayload(data []byte, compressed bool) ([]byte, error) {
	if !compressed {
		return data, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from gzip reader: %w", err)
	}
	return out, nil
}

// IsGzip reports whether data begins with the gzip magic bytes. Used when
// reading payloads written before compression tracking was stored.
func IsGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}
