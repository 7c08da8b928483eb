// ABOUTME: Streaming line assembly and cleanup for raw model output.
// ABOUTME: Turns token chunks into complete lines, stripping cursor markers and code fences.

package nes

import "strings"

// lineAssembler accumulates token chunks and yields complete lines as their
// terminating newline arrives. Unlike SplitLines it is stateful and never
// drops trailing blank lines, since mid-stream a blank line may be followed
// by more content.
type lineAssembler struct {
	pending string
}

// Feed appends chunk and returns any newly completed lines.
func (a *lineAssembler) Feed(chunk string) []string {
	a.pending += chunk

	var lines []string
	for {
		idx := strings.IndexByte(a.pending, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, strings.TrimSuffix(a.pending[:idx], "\r"))
		a.pending = a.pending[idx+1:]
	}
	return lines
}

// Flush returns the unterminated tail as a final line, if any.
func (a *lineAssembler) Flush() (string, bool) {
	if a.pending == "" {
		return "", false
	}
	line := strings.TrimSuffix(a.pending, "\r")
	a.pending = ""
	return line, true
}

// lineCleaner strips the cursor marker and Markdown code fences from model
// output lines. The marker is kept when the original window naturally
// contained the literal sequence, so genuine user content survives.
type lineCleaner struct {
	marker     string
	keepMarker bool
	sawContent bool
	inFence    bool
}

// newLineCleaner builds a cleaner for one response. originalWindowText is the
// unmarked window content used to detect a naturally-occurring marker.
func newLineCleaner(marker, originalWindowText string) *lineCleaner {
	return &lineCleaner{
		marker:     marker,
		keepMarker: marker != "" && strings.Contains(originalWindowText, marker),
	}
}

// Clean processes one line. The second return is false when the line is
// fence scaffolding and should be dropped.
func (c *lineCleaner) Clean(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)

	if !c.sawContent && strings.HasPrefix(trimmed, "```") {
		c.sawContent = true
		c.inFence = true
		return "", false
	}
	if c.inFence && trimmed == "```" {
		c.inFence = false
		return "", false
	}
	c.sawContent = true

	if c.marker != "" && !c.keepMarker {
		line = strings.ReplaceAll(line, c.marker, "")
	}
	return line, true
}
