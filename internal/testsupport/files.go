package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

var (
	h264StartCode = []byte{0x00, 0x00, 0x00, 0x01}
	h264SPS       = []byte{0x67, 0x42, 0xc0, 0x1f, 0xda, 0x01, 0x40, 0x16, 0xe8}
	h264PPS       = []byte{0x68, 0xce, 0x3c, 0x80}
)

// H264Stream returns an Annex-B stream of frames access units: parameter
// sets plus an IDR slice, followed by non-IDR slices of payloadSize bytes.
func H264Stream(frames, payloadSize int) []byte {
	if payloadSize < 1 {
		payloadSize = 1
	}
	var buf bytes.Buffer
	for i := 0; i < frames; i++ {
		header := []byte{0x41, 0x9a}
		if i == 0 {
			buf.Write(h264StartCode)
			buf.Write(h264SPS)
			buf.Write(h264StartCode)
			buf.Write(h264PPS)
			header = []byte{0x65, 0x88}
		}
		buf.Write(h264StartCode)
		buf.Write(header)
		buf.Write(bytes.Repeat([]byte{byte(0x10 + i%0xe0)}, payloadSize))
	}
	return buf.Bytes()
}

// WriteH264Stream writes H264Stream(frames, payloadSize) to path.
func WriteH264Stream(t testing.TB, path string, frames, payloadSize int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, H264Stream(frames, payloadSize), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
