package testsupport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteSizedText writes exactly size bytes of numbered text lines to path.
// The output is valid UTF-8 so the sniffer classifies it as text.
func WriteSizedText(t testing.TB, path string, size int) {
	t.Helper()
	var buf bytes.Buffer
	for n := 1; buf.Len() < size; n++ {
		fmt.Fprintf(&buf, "line %04d\n", n)
	}
	WriteText(t, path, string(buf.Bytes()[:max(size, 0)]))
}

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteTree writes each slash-separated relative path in files under root.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		WriteText(t, filepath.Join(root, filepath.FromSlash(rel)), content)
	}
}
