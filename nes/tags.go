// ABOUTME: Response-tag protocol parser for next-edit model output.
// ABOUTME: Recognizes <NO_CHANGE>, <EDIT>...</EDIT>, and <INSERT>...</INSERT> framing.

package nes

import "strings"

// TagKind identifies the framing a response opened with.
type TagKind int

const (
	// TagUnknown means no line has been seen yet.
	TagUnknown TagKind = iota
	// TagNone means the response carries raw edit content with no framing.
	TagNone
	// TagNoChange means the model proposed no edit.
	TagNoChange
	// TagEdit means content lines replace the edit window until </EDIT>.
	TagEdit
	// TagInsert means the first content line completes the cursor's line and
	// the rest are inserted after it, until </INSERT>.
	TagInsert
)

const (
	tagNoChange    = "<NO_CHANGE>"
	tagEditOpen    = "<EDIT>"
	tagEditClose   = "</EDIT>"
	tagInsertOpen  = "<INSERT>"
	tagInsertClose = "</INSERT>"
)

// tagParser classifies a response by its first line and strips the framing
// from the content lines that follow. It is fed one line at a time.
type tagParser struct {
	kind   TagKind
	closed bool
}

// Kind returns the detected framing, TagUnknown before the first line.
func (p *tagParser) Kind() TagKind {
	return p.kind
}

// Done reports whether the framing has terminated; later lines are trailer
// noise and are dropped.
func (p *tagParser) Done() bool {
	return p.closed
}

// Feed processes one cleaned line. The second return is false when the line
// is framing or trailer and carries no content.
func (p *tagParser) Feed(line string) (string, bool) {
	if p.closed {
		return "", false
	}

	if p.kind == TagUnknown {
		switch strings.TrimSpace(line) {
		case tagNoChange:
			p.kind = TagNoChange
			p.closed = true
			return "", false
		case tagEditOpen:
			p.kind = TagEdit
			return "", false
		case tagInsertOpen:
			p.kind = TagInsert
			return "", false
		default:
			p.kind = TagNone
			return line, true
		}
	}

	switch p.kind {
	case TagEdit:
		if strings.TrimSpace(line) == tagEditClose {
			p.closed = true
			return "", false
		}
		return line, true
	case TagInsert:
		if strings.TrimSpace(line) == tagInsertClose {
			p.closed = true
			return "", false
		}
		return line, true
	default:
		return line, true
	}
}
