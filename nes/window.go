// ABOUTME: Edit window planning: the document span the model is asked to rewrite.
// ABOUTME: Computes the wider area-around context and the narrower edit window inside it.

package nes

// EditWindow is the span of document lines sent to the model for rewriting.
// It is computed fresh per request and never mutated afterwards; a retry
// computes a new, larger window instead.
type EditWindow struct {
	Range LineRange
	// Lines holds a copy of the document lines covered by Range.
	Lines []string
	// CursorLineOffset is the cursor's line relative to Range.Start.
	CursorLineOffset int
	// CursorColOffset is the cursor's column within its line.
	CursorColOffset int
}

// CursorDocLine returns the cursor's absolute document line.
func (w EditWindow) CursorDocLine() int {
	return w.Range.Start + w.CursorLineOffset
}

// AreaAround computes the wider context window: a symmetric radius around the
// cursor line, clamped to document bounds. It always uses the original cursor
// position and radius regardless of retry state.
func AreaAround(docLen, cursorLine, radius int) LineRange {
	return LineRange{Start: cursorLine - radius, End: cursorLine + radius + 1}.Clamp(docLen)
}

// nonBlankScanLimit caps the upward scan for the nearest non-blank line.
const nonBlankScanLimit = 8

// linesAboveCursor picks how many lines above the cursor belong in the edit
// window. With the heuristic enabled, it is the distance to the nearest
// non-blank line above the cursor, scanning at most nonBlankScanLimit lines
// and falling back to 0 when everything in reach is blank.
func linesAboveCursor(docLines []string, cursorLine int, cfg Config) int {
	if !cfg.UseNonBlankAbove {
		return cfg.LinesAbove
	}
	for d := 1; d <= nonBlankScanLimit; d++ {
		idx := cursorLine - d
		if idx < 0 {
			break
		}
		if !isBlank(docLines[idx]) {
			return d
		}
	}
	return 0
}

// PlanEditWindow computes the edit window for a request. expanded widens the
// window downward by cfg.RetryExpansion; it is set only for the single
// expanded-window retry. The result is always contained in the area-around
// window computed from the original cursor position.
func PlanEditWindow(docLines []string, cursorLine, cursorCol int, cfg Config, expanded bool) EditWindow {
	above := linesAboveCursor(docLines, cursorLine, cfg)
	below := cfg.LinesBelow
	if expanded {
		below += cfg.RetryExpansion
	}

	r := LineRange{Start: cursorLine - above, End: cursorLine + below + 1}.Clamp(len(docLines))

	area := AreaAround(len(docLines), cursorLine, cfg.AreaRadius)
	if r.Start < area.Start {
		r.Start = area.Start
	}
	if r.End > area.End {
		r.End = area.End
	}
	if r.End < r.Start {
		r.End = r.Start
	}

	lines := make([]string, r.Len())
	copy(lines, docLines[r.Start:r.End])

	return EditWindow{
		Range:            r,
		Lines:            lines,
		CursorLineOffset: cursorLine - r.Start,
		CursorColOffset:  cursorCol,
	}
}

func isBlank(line string) bool {
	for _, c := range line {
		if c != ' ' && c != '\t' {
			return false
		}
	}
	return true
}
