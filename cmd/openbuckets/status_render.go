package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func (k statusKind) String() string {
	if s, ok := statusStyles[k]; ok {
		return s.label
	}
	return statusStyles[statusInfo].label
}

// paint wraps text in the kind's color when colorize is set.
func (k statusKind) paint(text string, colorize bool) string {
	s, ok := statusStyles[k]
	if !colorize || !ok {
		return text
	}
	return s.color + text + ansiReset
}

// renderStatusLine formats one "label: [TAG] message" row of open-buckets status.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	line := fmt.Sprintf("  %-10s %s", label+":", kind.paint("["+kind.String()+"]", colorize))
	if message == "" {
		return line
	}
	return line + " " + message
}

func renderSectionHeader(title string, colorize bool) string {
	return statusInfo.paint("== "+title+" ==", colorize)
}

// shouldColorize reports whether w is a terminal and NO_COLOR is unset.
func shouldColorize(w io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
