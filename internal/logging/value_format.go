package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const consoleTimestampLayout = "2006-01-02 15:04:05.000"

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(consoleTimestampLayout)
}

// plainValue renders v without quoting; used for header fields.
func plainValue(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return rawValue(v)
}

// fieldValue renders a bullet field. Byte counts under *_bytes keys use
// IEC units and large *_count values get thousands separators.
func fieldValue(key string, v slog.Value) string {
	v = v.Resolve()
	if n, ok := integerValue(v); ok && n >= 0 {
		switch {
		case strings.HasSuffix(key, "_bytes"):
			return humanize.IBytes(uint64(n))
		case strings.HasSuffix(key, "_count"):
			return humanize.Comma(n)
		}
	}
	s := rawValue(v)
	if v.Kind() == slog.KindString || v.Kind() == slog.KindAny {
		return quoteIfNeeded(s)
	}
	return s
}

func integerValue(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= 1<<63-1 {
			return int64(u), true
		}
	}
	return 0, false
}

func rawValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	return v.String()
}

// quoteIfNeeded quotes empty strings and strings holding control
// characters or double quotes.
func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r < ' ' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
