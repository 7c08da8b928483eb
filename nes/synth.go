// ABOUTME: Streaming edit synthesis: turns model output lines into line-range edits.
// ABOUTME: Convergence runs close edit regions early so edits ship before the stream ends.

package nes

// Synthesizer consumes the cleaned model line stream and emits Edits against
// the original edit window. Emission is forward-only and at-most-once: once
// an edit is handed to the emit callback it is never retracted, and edits
// arrive in increasing document line order.
type Synthesizer struct {
	window EditWindow
	cfg    Config
	diff   DiffService
	emit   func(Edit) error

	// origPtr indexes the next unconsumed original window line.
	origPtr int
	region  *editRegion
	run     *matchRun

	edits []Edit
	err   error
}

// editRegion is an open divergence between the model stream and the original
// window. start indexes the first diverging original line; newLines holds the
// model-side content confirmed to belong to the region.
type editRegion struct {
	start    int
	newLines []string
}

// matchRun tracks consecutive model lines that match original lines starting
// at origStart. It is tentative: a mismatch dissolves it back into the open
// region's new-side content.
type matchRun struct {
	origStart   int
	count       int
	significant int
}

// NewSynthesizer builds a synthesizer for one response. emit is called once
// per finished edit; returning an error stops all further emission.
func NewSynthesizer(window EditWindow, cfg Config, diff DiffService, emit func(Edit) error) *Synthesizer {
	return &Synthesizer{
		window: window,
		cfg:    cfg,
		diff:   diff,
		emit:   emit,
	}
}

// EditCount returns how many edits have been emitted so far.
func (s *Synthesizer) EditCount() int {
	return len(s.edits)
}

// Feed processes one model output line.
func (s *Synthesizer) Feed(line string) error {
	if s.err != nil {
		return s.err
	}
	orig := s.window.Lines

	if s.region == nil {
		if s.origPtr < len(orig) && line == orig[s.origPtr] {
			s.origPtr++
			return nil
		}

		// First divergence lands exactly on the cursor line: ship it as a
		// single-line replacement now instead of waiting for convergence.
		if s.cfg.EmitFastCursorLineChange && len(s.edits) == 0 &&
			s.origPtr == s.window.CursorLineOffset && s.origPtr < len(orig) {
			doc := s.window.Range.Start + s.origPtr
			s.push(Edit{
				Range:    LineRange{Start: doc, End: doc + 1},
				NewLines: []string{line},
			})
			s.origPtr++
			return s.err
		}

		s.region = &editRegion{start: s.origPtr}
		s.absorb(line)
		return s.err
	}

	s.absorb(line)
	return s.err
}

// absorb routes a line into the open region, extending or dissolving the
// tentative match run as needed.
func (s *Synthesizer) absorb(line string) {
	orig := s.window.Lines
	r := s.region

	if s.run != nil {
		next := s.run.origStart + s.run.count
		if next < len(orig) && line == orig[next] {
			s.run.count++
			if !isBlank(line) {
				s.run.significant++
			}
			if s.converged() {
				s.closeRegion()
			}
			return
		}
		// The run was a false convergence; its lines are model content.
		r.newLines = append(r.newLines, orig[s.run.origStart:s.run.origStart+s.run.count]...)
		s.run = nil
	}

	if q := s.findOriginal(line, r.start); q >= 0 {
		s.run = &matchRun{origStart: q, count: 1}
		if !isBlank(line) {
			s.run.significant = 1
		}
		if s.converged() {
			s.closeRegion()
		}
		return
	}

	r.newLines = append(r.newLines, line)
}

// converged reports whether the current match run satisfies either configured
// convergence policy. A zero threshold disables that policy.
func (s *Synthesizer) converged() bool {
	if s.run == nil {
		return false
	}
	if n := s.cfg.NLinesToConverge; n > 0 && s.run.count >= n {
		return true
	}
	if n := s.cfg.NSignificantLinesToConverge; n > 0 && s.run.significant >= n {
		return true
	}
	return false
}

// findOriginal returns the first original line index at or after from whose
// content equals line, or -1.
func (s *Synthesizer) findOriginal(line string, from int) int {
	orig := s.window.Lines
	for q := from; q < len(orig); q++ {
		if orig[q] == line {
			return q
		}
	}
	return -1
}

// closeRegion emits the open region's edits. The original side runs from the
// region start to where the match run began; the matched tail is unchanged.
func (s *Synthesizer) closeRegion() {
	s.emitRegion(s.region.start, s.run.origStart, s.region.newLines)
	s.origPtr = s.run.origStart + s.run.count
	s.region = nil
	s.run = nil
}

// Finish flushes any open region once the stream has ended cleanly. Do not
// call it when the fetch failed; pending unemitted edits are discarded by
// simply dropping the synthesizer.
func (s *Synthesizer) Finish() error {
	if s.err != nil {
		return s.err
	}
	if s.region == nil {
		return nil
	}

	if s.run != nil {
		// End of stream confirms the tentative tail matched for real.
		s.emitRegion(s.region.start, s.run.origStart, s.region.newLines)
		s.origPtr = s.run.origStart + s.run.count
	} else {
		s.emitRegion(s.region.start, len(s.window.Lines), s.region.newLines)
		s.origPtr = len(s.window.Lines)
	}
	s.region = nil
	s.run = nil
	return s.err
}

// emitRegion converts one closed region into edits. Single-line regions and
// pure insertions or deletions go out directly; regions with multiple lines
// on both sides are broken into minimal hunks by the diff service.
func (s *Synthesizer) emitRegion(startIdx, endIdx int, newSide []string) {
	origSide := s.window.Lines[startIdx:endIdx]
	if linesEqual(origSide, newSide) {
		return
	}

	docStart := s.window.Range.Start + startIdx

	direct := (len(origSide) <= 1 && len(newSide) <= 1) ||
		len(origSide) == 0 || len(newSide) == 0
	if direct {
		s.push(Edit{
			Range:    LineRange{Start: docStart, End: docStart + len(origSide)},
			NewLines: append([]string(nil), newSide...),
		})
		return
	}

	for _, ch := range s.diff.ComputeDiff(origSide, newSide) {
		s.push(Edit{
			Range: LineRange{
				Start: docStart + ch.Original.Start,
				End:   docStart + ch.Original.End,
			},
			NewLines: append([]string(nil), newSide[ch.Modified.Start:ch.Modified.End]...),
		})
	}
}

// push emits a single edit unless it would undo the previous one.
func (s *Synthesizer) push(e Edit) {
	if s.err != nil {
		return
	}
	if s.undoesPriorInsertion(e) {
		return
	}
	if err := s.emit(e); err != nil {
		s.err = err
		return
	}
	s.edits = append(s.edits, e)
}

// undoesPriorInsertion detects the type-then-delete failure mode: a deletion
// that removes exactly the lines the immediately preceding edit inserted.
func (s *Synthesizer) undoesPriorInsertion(e Edit) bool {
	if len(s.edits) == 0 {
		return false
	}
	last := s.edits[len(s.edits)-1]
	if !last.IsInsertion() || !e.IsDeletion() {
		return false
	}
	if e.Range.Start != last.Range.Start {
		return false
	}
	winStart := e.Range.Start - s.window.Range.Start
	winEnd := e.Range.End - s.window.Range.Start
	if winStart < 0 || winEnd > len(s.window.Lines) {
		return false
	}
	return linesEqual(s.window.Lines[winStart:winEnd], last.NewLines)
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
