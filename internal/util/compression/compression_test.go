package compression

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressors(t *testing.T) {
	payload := []byte(strings.Repeat("what's on your mind? ", 64))

	for _, name := range []string{"zstd", "gzip"} {
		t.Run(name, func(t *testing.T) {
			c, err := New(name)
			if err != nil {
				t.Fatalf("New(%q): %v", name, err)
			}

			compressed, err := c.Compress(payload)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if len(compressed) >= len(payload) {
				t.Errorf("Expected repetitive payload to shrink, %d >= %d", len(compressed), len(payload))
			}

			out, err := c.Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(out, payload) {
				t.Error("Decompressed payload differs from input")
			}
		})
	}

	t.Run("Garbage input", func(t *testing.T) {
		for _, c := range []Compressor{ZstdCompressor{}, GzipCompressor{}} {
			if _, err := c.Decompress([]byte("not compressed")); err == nil {
				t.Errorf("%T: expected error decompressing garbage", c)
			}
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, err := New("lz4"); err == nil {
			t.Error("Expected error for unknown compressor")
		}
	})
}
