// Package textutil holds small string helpers shared by the pipeline and CLI.
package textutil

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Prefix returns at most max runes of s. Never splits a multi-byte character.
func Prefix(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// RuneLen is utf8.RuneCountInString, named for symmetry with Prefix.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// CollapseSpace replaces every run of whitespace with a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FormatDurationShort formats milliseconds into a compact human-readable string.
//
//	<1000ms  -> "0.Xs"
//	<60000ms -> "X.Xs"
//	<3600000 -> "XmYs"
//	else     -> "XhYm"
func FormatDurationShort(ms int64) string {
	switch {
	case ms < 1000:
		return fmt.Sprintf("0.%ds", ms/100)
	case ms < 60000:
		return fmt.Sprintf("%d.%ds", ms/1000, (ms%1000)/100)
	case ms < 3600000:
		minutes := ms / 60000
		seconds := (ms % 60000) / 1000
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		hours := ms / 3600000
		minutes := (ms % 3600000) / 60000
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
}

// TruncateMiddle shortens a string by replacing the middle with "..." if it
// exceeds maxLen runes. Keeps roughly equal portions from start and end.
func TruncateMiddle(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	available := maxLen - 3
	firstHalf := (available + 1) / 2
	lastHalf := available / 2
	return string(runes[:firstHalf]) + "..." + string(runes[len(runes)-lastHalf:])
}
