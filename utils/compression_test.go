package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressPayloadRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat(`{"category":"paragraph","text":"body"},`, 50))

	compressed, wasCompressed, err := CompressPayload(original)
	if err != nil {
		t.Fatal(err)
	}
	if !wasCompressed {
		t.Fatal("payload above threshold should compress")
	}
	if len(compressed) >= len(original) {
		t.Errorf("repetitive payload grew: %d -> %d", len(original), len(compressed))
	}
	if !IsGzip(compressed) {
		t.Error("compressed payload missing gzip magic")
	}

	restored, err := DecompressPayload(compressed, true)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restored, original) {
		t.Error("round trip lost data")
	}
}

func TestCompressPayloadSmallPassthrough(t *testing.T) {
	small := []byte(`{"text":"hi"}`)
	out, wasCompressed, err := CompressPayload(small)
	if err != nil {
		t.Fatal(err)
	}
	if wasCompressed {
		t.Error("payload under threshold should be stored as-is")
	}
	if !bytes.Equal(out, small) {
		t.Error("passthrough modified data")
	}
	if IsGzip(out) {
		t.Error("plain json flagged as gzip")
	}

	restored, err := DecompressPayload(out, false)
	if err != nil || !bytes.Equal(restored, small) {
		t.Errorf("passthrough decompress = %q, %v", restored, err)
	}
}
