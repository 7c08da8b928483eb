// ABOUTME: Tests for line ranges, edits, and ApplyEdits coordinate handling.

package nes

import "testing"

func TestLineRangeClamp(t *testing.T) {
	r := LineRange{Start: -3, End: 12}.Clamp(10)
	if r.Start != 0 || r.End != 10 {
		t.Errorf("clamped = %v", r)
	}

	r = LineRange{Start: 8, End: 5}.Clamp(10)
	if r.Start != 8 || r.End != 8 {
		t.Errorf("inverted range = %v, want empty at start", r)
	}
}

func TestEditClassification(t *testing.T) {
	ins := Edit{Range: LineRange{Start: 3, End: 3}, NewLines: []string{"x"}}
	if !ins.IsInsertion() || ins.IsDeletion() {
		t.Error("insertion misclassified")
	}

	del := Edit{Range: LineRange{Start: 3, End: 5}}
	if !del.IsDeletion() || del.IsInsertion() {
		t.Error("deletion misclassified")
	}
}

func TestApplyEditsReplacement(t *testing.T) {
	doc := []string{"a", "b", "c", "d"}
	got := ApplyEdits(doc, []Edit{
		{Range: LineRange{Start: 1, End: 3}, NewLines: []string{"X"}},
	})
	want := []string{"a", "X", "d"}
	if !linesEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestApplyEditsMultipleInOriginalCoordinates(t *testing.T) {
	doc := []string{"a", "b", "c", "d", "e"}
	// Both edits reference the original document, not intermediate states.
	got := ApplyEdits(doc, []Edit{
		{Range: LineRange{Start: 0, End: 1}, NewLines: []string{"A1", "A2"}},
		{Range: LineRange{Start: 3, End: 4}, NewLines: []string{"D"}},
	})
	want := []string{"A1", "A2", "b", "c", "D", "e"}
	if !linesEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestApplyEditsInsertionAndDeletion(t *testing.T) {
	doc := []string{"a", "b", "c"}
	got := ApplyEdits(doc, []Edit{
		{Range: LineRange{Start: 1, End: 1}, NewLines: []string{"inserted"}},
		{Range: LineRange{Start: 2, End: 3}, NewLines: nil},
	})
	want := []string{"a", "inserted", "b"}
	if !linesEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestApplyEditsDoesNotMutateInput(t *testing.T) {
	doc := []string{"a", "b"}
	ApplyEdits(doc, []Edit{{Range: LineRange{Start: 0, End: 1}, NewLines: []string{"z"}}})
	if doc[0] != "a" {
		t.Errorf("input mutated: %q", doc)
	}
}
