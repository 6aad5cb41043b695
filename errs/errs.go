// Package errs implements Arcana's error value: a message plus an optional
// source position that is upgraded lazily as the error propagates back
// through parsers that hold a live Input (see Upgrade). The design mirrors
// the teacher's runtime/parser.ParseError (a typed Kind, a carried token/
// position, and Suggestions for "did you mean" hints) but trades the
// teacher's bracket-tracker for Arcana's simpler single-position model.
package errs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Kind categorizes a failure the way spec §4.4 enumerates error kinds.
type Kind int

const (
	KindIoFailure Kind = iota
	KindUnexpectedEof
	KindUnexpectedCharacter
	KindUnknownTag
	KindUnexpectedTag
	KindUnknownEndTag
	KindUnexpectedEndTag
	KindBadNumber
	KindBadUtf8
	KindAssertionFailed
	KindOverflowInPow
	KindBadState
	// KindBadPath separates "the referenced file does not exist" from a
	// surrounding syntax error, per spec §9's open question about
	// canonicalize failures in path/dirname/basename.
	KindBadPath
)

func (k Kind) String() string {
	switch k {
	case KindIoFailure:
		return "io_failure"
	case KindUnexpectedEof:
		return "unexpected_eof"
	case KindUnexpectedCharacter:
		return "unexpected_character"
	case KindUnknownTag:
		return "unknown_tag"
	case KindUnexpectedTag:
		return "unexpected_tag"
	case KindUnknownEndTag:
		return "unknown_end_tag"
	case KindUnexpectedEndTag:
		return "unexpected_end_tag"
	case KindBadNumber:
		return "bad_number"
	case KindBadUtf8:
		return "bad_utf8"
	case KindAssertionFailed:
		return "assertion_failed"
	case KindOverflowInPow:
		return "overflow_in_pow"
	case KindBadState:
		return "bad_state"
	case KindBadPath:
		return "bad_path"
	default:
		return "unknown"
	}
}

// Position is a source location: file, line, a byte/column index into that
// line, and the raw text of the offending line for display.
type Position struct {
	File    string
	Line    int
	Index   int
	Snippet string
}

// Error is Arcana's error carrier. Pos starts nil at the point of failure
// and is filled in by the first parser in the call chain that holds a live
// Input (see Upgrade) — this lets low-level primitives raise errors without
// threading an Input reference through every call site.
type Error struct {
	Kind        Kind
	Message     string
	Pos         *Position
	Suggestions []string
	// Snapshot is an optional cbor-encoded Context snapshot, attached by
	// callers that want a diagnostic payload alongside the error (see the
	// snapshot package). Opaque to errs itself.
	Snapshot []byte
}

// New creates an Error with no position yet attached.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// NewAt creates an Error with a position already attached, for sites (like
// Input's own I/O and UTF-8 failures) that always know their position.
func NewAt(kind Kind, message string, pos Position) *Error {
	e := New(kind, message)
	e.Pos = &pos
	return e
}

// Error implements the standard error interface with just the message, so
// plain `err.Error()` consumers see a readable string without needing to
// know about positions.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Is supports errors.Is(err, sentinelKindError) by comparing Kind, the way
// the teacher's ParseError exposes a typed ErrorType for callers to branch
// on. Two *Error values are "the same" for errors.Is purposes iff they
// share a Kind — message and position are ignored.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithSuggestions attaches "did you mean" candidates and returns e for
// chaining.
func (e *Error) WithSuggestions(s []string) *Error {
	e.Suggestions = s
	return e
}

// WithSnapshot attaches a diagnostic context snapshot and returns e for
// chaining.
func (e *Error) WithSnapshot(b []byte) *Error {
	e.Snapshot = b
	return e
}

// Display renders the full human-facing error: message, file:line:column,
// the offending source line, and a caret under the offending column, per
// spec §4.4 ("A displayed error shows message, file, line, column, and the
// offending line").
func (e *Error) Display() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Pos != nil {
		file := e.Pos.File
		if file == "" {
			file = "<input>"
		}
		fmt.Fprintf(&b, " (%s:%d:%d)", file, e.Pos.Line, e.Pos.Index+1)
		if e.Pos.Snippet != "" {
			b.WriteByte('\n')
			b.WriteString(e.Pos.Snippet)
			b.WriteByte('\n')
			if e.Pos.Index > 0 {
				b.WriteString(strings.Repeat(" ", e.Pos.Index))
			}
			b.WriteByte('^')
		}
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, "\ndid you mean: %s?", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

// Upgrade stamps pos onto err if err is an *Error with no position yet. It
// is the implementation of spec §4.4/§7's "position upgrade": the first
// parser holding a live Input fills in the position of an error raised by
// a primitive that had none. Non-Error errors and already-positioned
// Errors pass through unchanged.
func Upgrade(err error, pos Position) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok || e.Pos != nil {
		return err
	}
	p := pos
	e.Pos = &p
	return e
}

// Suggest returns up to three fuzzy-matched candidates for name out of
// candidates, used to populate Suggestions on KindUnknownTag/
// KindUnknownEndTag errors ("did you mean 'if'?"). Candidates whose edit
// distance is implausibly large (more than half of name's length plus one,
// minimum 2) are dropped rather than offered as noise.
func Suggest(name string, candidates []string) []string {
	ranks := fuzzy.RankFindNormalizedFold(name, candidates)
	sort.Slice(ranks, func(i, j int) bool { return ranks[i].Distance < ranks[j].Distance })

	threshold := len(name)/2 + 1
	if threshold < 2 {
		threshold = 2
	}

	var out []string
	for _, r := range ranks {
		if r.Distance > threshold {
			continue
		}
		out = append(out, r.Target)
		if len(out) == 3 {
			break
		}
	}
	return out
}
