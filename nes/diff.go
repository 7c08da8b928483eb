// ABOUTME: Line-based diff service used to break multi-line edit regions into minimal hunks.
// ABOUTME: Backed by diffmatchpatch in line mode behind a small interface.

package nes

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffChange maps a span of original lines to the span of modified lines that
// replaces it. Both ranges are relative to the inputs of ComputeDiff.
type DiffChange struct {
	Original LineRange
	Modified LineRange
}

// DiffService computes line-level changes between two line slices.
type DiffService interface {
	ComputeDiff(original, modified []string) []DiffChange
}

type lineDiffService struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewLineDiffService returns the standard DiffService implementation.
func NewLineDiffService() DiffService {
	return &lineDiffService{dmp: diffmatchpatch.New()}
}

// ComputeDiff diffs the two inputs at line granularity and merges adjacent
// deletions and insertions into single replacement changes.
func (s *lineDiffService) ComputeDiff(original, modified []string) []DiffChange {
	a := joinForDiff(original)
	b := joinForDiff(modified)

	ca, cb, lineArray := s.dmp.DiffLinesToChars(a, b)
	diffs := s.dmp.DiffMain(ca, cb, false)
	diffs = s.dmp.DiffCharsToLines(diffs, lineArray)

	var changes []DiffChange
	origLine, modLine := 0, 0
	var open *DiffChange

	flush := func() {
		if open != nil {
			changes = append(changes, *open)
			open = nil
		}
	}

	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			origLine += n
			modLine += n
		case diffmatchpatch.DiffDelete:
			if open == nil {
				open = &DiffChange{
					Original: LineRange{Start: origLine, End: origLine},
					Modified: LineRange{Start: modLine, End: modLine},
				}
			}
			origLine += n
			open.Original.End = origLine
		case diffmatchpatch.DiffInsert:
			if open == nil {
				open = &DiffChange{
					Original: LineRange{Start: origLine, End: origLine},
					Modified: LineRange{Start: modLine, End: modLine},
				}
			}
			modLine += n
			open.Modified.End = modLine
		}
	}
	flush()

	return changes
}

// joinForDiff terminates every line so diffmatchpatch's line mode counts the
// last one.
func joinForDiff(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
