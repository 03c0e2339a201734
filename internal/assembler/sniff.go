package assembler

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// sniffSize is how much of a file is inspected to decide text versus binary.
const sniffSize = 8 * 1024

var binarySignatures = [][]byte{
	[]byte("%PDF"),
	{'P', 'K', 0x03, 0x04},
	{'P', 'K', 0x05, 0x06},
	{'P', 'K', 0x07, 0x08},
	{0x89, 'P', 'N', 'G'},
	{0xFF, 0xD8, 0xFF},
	{0x7F, 'E', 'L', 'F'},
}

// Sniff reports whether path looks like text: no NUL byte in the first 8 KiB
// and no known binary signature at the start. Empty files are text.
func Sniff(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open for sniffing: %w", err)
	}
	defer f.Close()

	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, fmt.Errorf("read for sniffing: %w", err)
	}
	return IsText(buf[:n]), nil
}

// IsText applies the sniffing rules to an in-memory sample.
func IsText(sample []byte) bool {
	if bytes.IndexByte(sample, 0) >= 0 {
		return false
	}
	for _, sig := range binarySignatures {
		if bytes.HasPrefix(sample, sig) {
			return false
		}
	}
	return true
}
