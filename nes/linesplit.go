// ABOUTME: Pure line splitting of an incrementally-growing text buffer.
// ABOUTME: Complete lines come back separate from the pending unterminated remainder.

package nes

import "strings"

// SplitLines splits buffer into complete lines and a pending remainder.
// A line is complete only once its trailing newline has arrived; anything
// after the last newline is the remainder even when non-empty. CRLF line
// endings are normalized by dropping the carriage return. Empty lines
// between content are preserved, but a run of empty lines at the tail of
// the completed portion is dropped rather than emitted.
func SplitLines(buffer string) (lines []string, remainder string) {
	if buffer == "" {
		return nil, ""
	}

	segments := strings.Split(buffer, "\n")
	remainder = segments[len(segments)-1]
	complete := segments[:len(segments)-1]

	for len(complete) > 0 && complete[len(complete)-1] == "" {
		complete = complete[:len(complete)-1]
	}
	if len(complete) == 0 {
		return nil, remainder
	}

	lines = make([]string, len(complete))
	for i, line := range complete {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, remainder
}
