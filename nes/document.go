// ABOUTME: Core data model for next-edit suggestions: line ranges, edits, and edit application.
// ABOUTME: All ranges are half-open [Start, End) in document line coordinates.

package nes

import "fmt"

// LineRange is a half-open span of document lines [Start, End).
type LineRange struct {
	Start int
	End   int
}

// Len returns the number of lines covered by the range.
func (r LineRange) Len() int {
	return r.End - r.Start
}

// IsEmpty reports whether the range covers no lines (a pure insertion point).
func (r LineRange) IsEmpty() bool {
	return r.End <= r.Start
}

// Clamp restricts the range to [0, docLen).
func (r LineRange) Clamp(docLen int) LineRange {
	if r.Start < 0 {
		r.Start = 0
	}
	if r.End > docLen {
		r.End = docLen
	}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}

// Contains reports whether other lies entirely within r.
func (r LineRange) Contains(other LineRange) bool {
	return other.Start >= r.Start && other.End <= r.End
}

func (r LineRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Edit replaces the document lines in Range with NewLines. An empty Range is
// an insertion before line Range.Start; empty NewLines is a deletion.
type Edit struct {
	Range    LineRange
	NewLines []string
}

// IsInsertion reports whether the edit adds lines without removing any.
func (e Edit) IsInsertion() bool {
	return e.Range.IsEmpty() && len(e.NewLines) > 0
}

// IsDeletion reports whether the edit removes lines without adding any.
func (e Edit) IsDeletion() bool {
	return !e.Range.IsEmpty() && len(e.NewLines) == 0
}

// ApplyEdits applies a sequence of edits to a document. Edits must reference
// disjoint ranges in increasing order of Range.Start, all in the coordinate
// space of the ORIGINAL document; application works backwards so earlier
// edits never shift later ones. The input slice is not modified.
func ApplyEdits(docLines []string, edits []Edit) []string {
	result := make([]string, len(docLines))
	copy(result, docLines)

	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		r := e.Range.Clamp(len(docLines))
		next := make([]string, 0, len(result)-r.Len()+len(e.NewLines))
		next = append(next, result[:r.Start]...)
		next = append(next, e.NewLines...)
		next = append(next, result[r.End:]...)
		result = next
	}

	return result
}
