// ABOUTME: Next-edit suggestion provider: orchestrates windowing, streaming, synthesis, and retry.
// ABOUTME: Entry point is Provider.Suggest; edits stream to the caller as the model responds.

package nes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zugzugs/nextedit/llm"
)

// Endpoint is the streaming completion capability the provider consumes.
// llm.Client satisfies it directly.
type Endpoint interface {
	Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error)
}

// SuggestionRequest describes the document state a suggestion is wanted for.
type SuggestionRequest struct {
	DocLines   []string
	CursorLine int
	CursorCol  int
	// FileName is included in the prompt for language context. Optional.
	FileName string
}

// Provider produces next-edit suggestions for a document position.
type Provider struct {
	endpoint Endpoint
	cfg      Config
	catalog  *llm.Catalog
	diff     DiffService
	delays   DelaySession
}

// ProviderOption is a functional option for configuring a Provider.
type ProviderOption func(*Provider)

// WithDiffService overrides the diff implementation.
func WithDiffService(d DiffService) ProviderOption {
	return func(p *Provider) {
		p.diff = d
	}
}

// WithDelaySession overrides the delay source.
func WithDelaySession(d DelaySession) ProviderOption {
	return func(p *Provider) {
		p.delays = d
	}
}

// WithCatalog overrides the model catalog used for resolution and the
// default-model fallback.
func WithCatalog(c *llm.Catalog) ProviderOption {
	return func(p *Provider) {
		p.catalog = c
	}
}

// NewProvider builds a Provider over the given endpoint.
func NewProvider(endpoint Endpoint, cfg Config, opts ...ProviderOption) *Provider {
	p := &Provider{
		endpoint: endpoint,
		cfg:      cfg,
		catalog:  llm.DefaultCatalog(),
		diff:     NewLineDiffService(),
		delays: FixedDelaySession{
			DebounceDelay: cfg.Debounce.Std(),
			EmitDelay:     cfg.ArtificialDelay.Std(),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Suggest computes edit suggestions for the request and forwards each one to
// emit as soon as it is known. It returns nil once at least one edit shipped,
// ErrNoSuggestions when the model proposed nothing even after the expanded
// retry, a *FetchError on backend failure, or the context error on
// cancellation. Edits already forwarded are never retracted.
func (p *Provider) Suggest(ctx context.Context, req SuggestionRequest, emit func(Edit) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("suggestion pipeline panic: %v", r)
		}
	}()

	if !p.cfg.Simulation {
		if werr := wait(ctx, p.delays.Debounce()); werr != nil {
			return werr
		}
	}

	retry := NewRetryController(p.cfg.ExpandedRetryEnabled)
	model := p.catalog.Resolve(p.cfg.Model, p.cfg.Provider)

	for {
		window := PlanEditWindow(req.DocLines, req.CursorLine, req.CursorCol, p.cfg, retry.Expanded())

		count, runErr := p.runOnce(ctx, req, window, model, emit)
		if runErr != nil {
			if IsModelNotFound(runErr) && retry.SubstituteDefaultModel() {
				if def := p.catalog.DefaultModel(p.cfg.Provider); def != nil {
					model = def.ID
					continue
				}
			}
			return runErr
		}
		if count > 0 {
			return nil
		}
		if retry.RetryEmpty() {
			continue
		}
		return ErrNoSuggestions
	}
}

// runOnce performs a single request/stream/synthesize pass and returns the
// number of edits emitted.
func (p *Provider) runOnce(ctx context.Context, req SuggestionRequest, window EditWindow, model string, emit func(Edit) error) (int, error) {
	events, err := p.endpoint.Stream(ctx, p.buildRequest(req, window, model))
	if err != nil {
		return 0, classifyFetchError(err)
	}

	paced := p.paceEmit(ctx, emit)
	synth := NewSynthesizer(window, p.cfg, p.diff, paced)
	asm := &lineAssembler{}
	cleaner := newLineCleaner(p.cfg.Marker(), strings.Join(window.Lines, "\n"))
	tags := &tagParser{}

	var insertLines []string
	feedLine := func(line string) error {
		cleaned, ok := cleaner.Clean(line)
		if !ok {
			return nil
		}
		content, ok := tags.Feed(cleaned)
		if !ok {
			return nil
		}
		if tags.Kind() == TagInsert {
			insertLines = append(insertLines, content)
			return nil
		}
		return synth.Feed(content)
	}

	var streamErr error
	aborted := false

	// After cancellation or failure, keep draining so the producer goroutine
	// can run to completion, but stop interpreting content.
	for evt := range events {
		if aborted {
			continue
		}
		if ctx.Err() != nil {
			streamErr = ctx.Err()
			aborted = true
			continue
		}

		switch evt.Type {
		case llm.StreamTextDelta:
			for _, line := range asm.Feed(evt.Delta) {
				if ferr := feedLine(line); ferr != nil {
					streamErr = ferr
					aborted = true
					break
				}
			}
		case llm.StreamErrorEvt:
			streamErr = evt.Error
			aborted = true
		}
	}

	if streamErr != nil {
		// Pending unemitted edits are dropped with the synthesizer; edits
		// already forwarded stand.
		return synth.EditCount(), classifyFetchError(streamErr)
	}
	if ctx.Err() != nil {
		return synth.EditCount(), ctx.Err()
	}

	if tail, ok := asm.Flush(); ok {
		if ferr := feedLine(tail); ferr != nil {
			return synth.EditCount(), classifyFetchError(ferr)
		}
	}

	switch tags.Kind() {
	case TagNoChange:
		return 0, nil
	case TagInsert:
		return p.emitInsert(window, insertLines, paced)
	default:
		if ferr := synth.Finish(); ferr != nil {
			return synth.EditCount(), classifyFetchError(ferr)
		}
		return synth.EditCount(), nil
	}
}

// emitInsert turns <INSERT> content into a single edit: the first content
// line continues the cursor's line from the cursor column, the rest are new
// lines after it.
func (p *Provider) emitInsert(window EditWindow, content []string, emit func(Edit) error) (int, error) {
	if len(content) == 0 {
		return 0, nil
	}

	cursorLine := ""
	if window.CursorLineOffset < len(window.Lines) {
		cursorLine = window.Lines[window.CursorLineOffset]
	}
	col := window.CursorColOffset
	if col > len(cursorLine) {
		col = len(cursorLine)
	}

	newLines := make([]string, 0, len(content))
	newLines = append(newLines, cursorLine[:col]+content[0])
	newLines = append(newLines, content[1:]...)

	doc := window.CursorDocLine()
	edit := Edit{
		Range:    LineRange{Start: doc, End: doc + 1},
		NewLines: newLines,
	}
	if len(edit.NewLines) == 1 && edit.NewLines[0] == cursorLine {
		return 0, nil
	}
	if err := emit(edit); err != nil {
		return 0, classifyFetchError(err)
	}
	return 1, nil
}

// paceEmit wraps emit with the artificial delay before the first edit and a
// cancellation check before every edit.
func (p *Provider) paceEmit(ctx context.Context, emit func(Edit) error) func(Edit) error {
	first := true
	return func(e Edit) error {
		if first {
			first = false
			if !p.cfg.Simulation {
				if err := wait(ctx, p.delays.ArtificialDelay()); err != nil {
					return err
				}
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return emit(e)
	}
}

// buildRequest assembles the chat request: wider context plus the edit
// window with the cursor marker inserted.
func (p *Provider) buildRequest(req SuggestionRequest, window EditWindow, model string) llm.Request {
	area := AreaAround(len(req.DocLines), req.CursorLine, p.cfg.AreaRadius)

	var b strings.Builder
	if req.FileName != "" {
		fmt.Fprintf(&b, "File: %s\n\n", req.FileName)
	}
	b.WriteString("Surrounding code:\n")
	for i := area.Start; i < area.End; i++ {
		b.WriteString(req.DocLines[i])
		b.WriteByte('\n')
	}
	b.WriteString("\nRewrite these lines; the cursor is marked with ")
	b.WriteString(p.cfg.Marker())
	b.WriteString(":\n")
	b.WriteString(p.markedWindowText(window))

	return llm.Request{
		Model:    model,
		Provider: p.cfg.Provider,
		Messages: []llm.Message{
			llm.SystemMessage(nesSystemPrompt),
			llm.UserMessage(b.String()),
		},
		CacheSystemPrompt: true,
	}
}

// markedWindowText renders the window with the cursor marker spliced into the
// cursor's line at the cursor column.
func (p *Provider) markedWindowText(window EditWindow) string {
	marker := p.cfg.Marker()

	var b strings.Builder
	for i, line := range window.Lines {
		if i == window.CursorLineOffset {
			col := window.CursorColOffset
			if col > len(line) {
				col = len(line)
			}
			b.WriteString(line[:col])
			b.WriteString(marker)
			b.WriteString(line[col:])
		} else {
			b.WriteString(line)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// classifyFetchError maps backend errors into the suggestion error taxonomy.
// Cancellation and model-not-found pass through so callers can react; every
// other failure wraps as a FetchError.
func classifyFetchError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) || IsModelNotFound(err) {
		return err
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Cause: err}
}

const nesSystemPrompt = `You are a code completion engine that proposes the next edit.
You receive surrounding code and a narrower region to rewrite; the cursor position is marked.
Respond with exactly one of:
<NO_CHANGE> when nothing should change.
<EDIT> followed by the full replacement for the region, then </EDIT>.
<INSERT> followed by the completion of the cursor's line and any new lines, then </INSERT>.
Do not add commentary or code fences.`
