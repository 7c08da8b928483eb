// ABOUTME: Tests for the line-mode diff service.

package nes

import "testing"

func TestComputeDiffIdentical(t *testing.T) {
	d := NewLineDiffService()
	changes := d.ComputeDiff([]string{"a", "b"}, []string{"a", "b"})
	if len(changes) != 0 {
		t.Errorf("changes = %+v, want none", changes)
	}
}

func TestComputeDiffSingleReplacement(t *testing.T) {
	d := NewLineDiffService()
	changes := d.ComputeDiff(
		[]string{"a", "b", "c"},
		[]string{"a", "B", "c"},
	)
	if len(changes) != 1 {
		t.Fatalf("changes = %+v, want 1", changes)
	}
	ch := changes[0]
	if ch.Original.Start != 1 || ch.Original.End != 2 {
		t.Errorf("original = %v, want [1,2)", ch.Original)
	}
	if ch.Modified.Start != 1 || ch.Modified.End != 2 {
		t.Errorf("modified = %v, want [1,2)", ch.Modified)
	}
}

func TestComputeDiffInsertion(t *testing.T) {
	d := NewLineDiffService()
	changes := d.ComputeDiff(
		[]string{"a", "c"},
		[]string{"a", "b", "c"},
	)
	if len(changes) != 1 {
		t.Fatalf("changes = %+v, want 1", changes)
	}
	ch := changes[0]
	if ch.Original.Len() != 0 {
		t.Errorf("original = %v, want empty", ch.Original)
	}
	if ch.Modified.Len() != 1 {
		t.Errorf("modified = %v, want one line", ch.Modified)
	}
}

func TestComputeDiffRoundTripThroughApply(t *testing.T) {
	original := []string{"func f() {", "\treturn 1", "}", "", "func g() {", "\treturn 2", "}"}
	modified := []string{"func f() {", "\treturn 10", "}", "", "func g() {", "\treturn 2", "\t// done", "}"}

	d := NewLineDiffService()
	changes := d.ComputeDiff(original, modified)

	var edits []Edit
	for _, ch := range changes {
		edits = append(edits, Edit{
			Range:    ch.Original,
			NewLines: modified[ch.Modified.Start:ch.Modified.End],
		})
	}
	got := ApplyEdits(original, edits)
	if !linesEqual(got, modified) {
		t.Errorf("round trip got %q, want %q", got, modified)
	}
}

func TestComputeDiffDisjointIncreasingChanges(t *testing.T) {
	d := NewLineDiffService()
	changes := d.ComputeDiff(
		[]string{"a", "b", "c", "d", "e"},
		[]string{"A", "b", "c", "d", "E"},
	)
	prevEnd := -1
	for _, ch := range changes {
		if ch.Original.Start < prevEnd {
			t.Fatalf("changes overlap or regress: %+v", changes)
		}
		prevEnd = ch.Original.End
	}
}
