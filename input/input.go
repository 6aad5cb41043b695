// Package input implements the compiler's character stream: spec §4.1's
// Input component. Grounded on the teacher's runtime/lexer.Lexer, which
// reads its whole source into a string up front and walks it with a
// position/readPos/line/column cursor (lexer.go's readChar/peekChar) —
// Input reuses that exact shape, adding the path/line-snippet/join_path
// surface the template compiler needs for error reporting and relative
// file resolution.
package input

import (
	"io"
	"os"
	"unicode/utf8"

	"github.com/oh-clever/arcana/errs"
	"github.com/oh-clever/arcana/internal/pathutil"
)

// None is the sentinel rune returned by Current/Peek/PeekAt at end of
// input, standing in for spec §4.1's "char|none".
const None rune = -1

// Input is a line-tracked, path-tagged character stream over an
// in-memory copy of the template source.
type Input struct {
	path string
	data string

	pos     int  // byte offset of the current rune (or len(data) at EOF)
	readPos int  // byte offset just past the current rune
	cur     rune // current rune, or None at EOF

	line      int // 1-based line number of the current rune
	lineStart int // byte offset of the start of the current line
}

// FromReader reads r to completion and returns an Input with no path.
func FromReader(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Newf(errs.KindIoFailure, "reading template source: %v", err)
	}
	return fromString(string(data), ""), nil
}

// FromFile opens path read-only and returns an Input tagged with it.
func FromFile(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Newf(errs.KindIoFailure, "opening %s: %v", path, err)
	}
	return fromString(string(data), path), nil
}

// FromBytes wraps an in-memory byte slice. The path defaults to empty and
// may be set with SetPath; this is the constructor used for "limited"
// sub-parses (§2) that re-parse a previously captured body.
func FromBytes(data []byte) *Input {
	return fromString(string(data), "")
}

func fromString(data, path string) *Input {
	in := &Input{data: data, path: path, line: 1}
	in.advance()
	return in
}

// advance decodes the rune at readPos into cur and moves pos/readPos past
// it, without touching line tracking — Step wraps this with the newline
// bookkeeping since whether we just *left* a newline depends on the rune
// being replaced, not the one being loaded.
func (in *Input) advance() error {
	in.pos = in.readPos
	if in.readPos >= len(in.data) {
		in.cur = None
		return nil
	}
	r, size := utf8.DecodeRuneInString(in.data[in.readPos:])
	if r == utf8.RuneError && size <= 1 {
		in.cur = None
		return errs.NewAt(errs.KindBadUtf8, "invalid UTF-8 sequence in template source", in.Position())
	}
	in.cur = r
	in.readPos += size
	return nil
}

// Current returns the rune under the cursor, or None at end of input.
func (in *Input) Current() rune { return in.cur }

// IsEnd reports whether the stream is fully consumed.
func (in *Input) IsEnd() bool { return in.cur == None }

// Step advances by one Unicode scalar. After Step, Current is either the
// next scalar of the source or None at end-of-file, per spec §4.1's
// invariant.
func (in *Input) Step() error {
	if in.cur == None {
		return nil
	}
	wasNewline := in.cur == '\n'
	if err := in.advance(); err != nil {
		return err
	}
	if wasNewline {
		in.line++
		in.lineStart = in.pos
	}
	return nil
}

// PeekAt returns the rune n scalars ahead of Current (PeekAt(0) is the
// very next rune) without consuming anything, or None past end of input.
func (in *Input) PeekAt(n int) rune {
	pos := in.readPos
	for i := 0; i < n; i++ {
		if pos >= len(in.data) {
			return None
		}
		_, size := utf8.DecodeRuneInString(in.data[pos:])
		pos += size
	}
	if pos >= len(in.data) {
		return None
	}
	r, _ := utf8.DecodeRuneInString(in.data[pos:])
	return r
}

// Peek is PeekAt(0), the single character of lookahead used throughout
// the tag dispatcher (e.g. deciding `{{` vs `{%` vs `{#` after a `{`).
func (in *Input) Peek() rune { return in.PeekAt(0) }

// Path returns the file this input is tagged with, or "" for readers/byte
// slices that were never given one.
func (in *Input) Path() string { return in.path }

// SetPath overrides the tagged path, used by callers constructing an
// in-memory Input that should still resolve relative paths sensibly.
func (in *Input) SetPath(p string) { in.path = p }

// JoinPath resolves p relative to this input's directory when p is
// relative, else returns p unchanged.
func (in *Input) JoinPath(p string) string { return pathutil.Resolve(in.path, p) }

// LineNo returns the 1-based line number of the current rune.
func (in *Input) LineNo() int { return in.line }

// Index returns the byte offset of the current rune within its line.
func (in *Input) Index() int { return in.pos - in.lineStart }

// Line returns the full text of the current line (no trailing newline),
// for use in error snippets.
func (in *Input) Line() string {
	end := in.lineStart
	for end < len(in.data) && in.data[end] != '\n' {
		end++
	}
	return in.data[in.lineStart:end]
}

// Position captures the current file/line/index/snippet as an
// errs.Position, for primitives that construct a positioned error
// directly rather than relying on later Upgrade.
func (in *Input) Position() errs.Position {
	return errs.Position{File: in.path, Line: in.line, Index: in.Index(), Snippet: in.Line()}
}

// Mark is a cheap snapshot of the cursor, used for non-destructive
// lookahead (try a parse, Reset if it doesn't pan out). Copying a Mark
// never copies the underlying source text.
type Mark struct {
	pos, readPos, line, lineStart int
	cur                           rune
}

// Mark snapshots the current cursor position.
func (in *Input) Mark() Mark {
	return Mark{in.pos, in.readPos, in.line, in.lineStart, in.cur}
}

// Reset restores the cursor to a previously taken Mark.
func (in *Input) Reset(m Mark) {
	in.pos, in.readPos, in.line, in.lineStart, in.cur = m.pos, m.readPos, m.line, m.lineStart, m.cur
}

// TextBetween returns the exact source text consumed since start was
// marked, used by the bypass-mode block capture to reproduce a tag's
// body byte-for-byte for later re-parse.
func (in *Input) TextBetween(start Mark) string {
	return in.data[start.pos:in.pos]
}

// TextRange returns the exact source text between two marks taken from
// the same Input, regardless of the cursor's current position. Used by
// bypass-mode block capture to slice out a body segment that ends before
// an `else`/end tag which has since been consumed further.
func (in *Input) TextRange(start, end Mark) string {
	return in.data[start.pos:end.pos]
}
