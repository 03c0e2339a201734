package search

import (
	"strconv"
	"strings"
)

// ContextSource is the synthetic source for output lines that cannot be
// attributed to a file, such as tool notices.
const ContextSource = "context"

// parseLine converts one line of NUL-delimited tool output into a Match.
// Match lines ("file\x00N:text") carry a line number; context lines
// ("file\x00N-text") do not. Group separators and blank lines are dropped.
func parseLine(line, pattern string) (Match, bool) {
	if line == "" || line == "--" {
		return Match{}, false
	}
	file, rest, ok := strings.Cut(line, "\x00")
	if !ok || file == "" {
		return Match{SourceFile: ContextSource, Text: line, Pattern: pattern}, true
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits == 0 || digits == len(rest) {
		return Match{SourceFile: file, Text: rest, Pattern: pattern}, true
	}
	text := rest[digits+1:]
	switch rest[digits] {
	case ':':
		n, err := strconv.Atoi(rest[:digits])
		if err != nil {
			return Match{SourceFile: file, Text: rest, Pattern: pattern}, true
		}
		return Match{SourceFile: file, LineNumber: &n, Text: text, Pattern: pattern}, true
	case '-':
		return Match{SourceFile: file, Text: text, Pattern: pattern}, true
	default:
		return Match{SourceFile: file, Text: rest, Pattern: pattern}, true
	}
}
