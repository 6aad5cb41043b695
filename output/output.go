// Package output implements spec §4.3's three-tier buffer: writes land in
// a per-tag scratch buffer, which is flushed to a content accumulator at
// semantic checkpoints, which is in turn flushed to the destination sink
// only once, at top-level completion.
package output

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// Output is the three-tier byte buffer described by spec §4.3.
type Output struct {
	scratch     []byte
	content     []byte
	destination io.Writer
}

// New wraps dest as an Output's destination sink.
func New(dest io.Writer) *Output {
	return &Output{destination: dest}
}

// WriteChar appends a single rune to the scratch buffer.
func (o *Output) WriteChar(c rune) {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], c)
	o.scratch = append(o.scratch, buf[:n]...)
}

// WriteStr appends a string to the scratch buffer.
func (o *Output) WriteStr(s string) {
	o.scratch = append(o.scratch, s...)
}

// WriteBytesToBuffer appends raw bytes to the scratch buffer.
func (o *Output) WriteBytesToBuffer(b []byte) {
	o.scratch = append(o.scratch, b...)
}

// FlushBufferToContent moves the scratch buffer's contents onto the
// content accumulator and empties scratch. Spec §3 requires scratch to be
// empty at every tag boundary in non-bypass mode; callers achieve that by
// calling this after every plain-text character and at tag boundaries.
func (o *Output) FlushBufferToContent() {
	if len(o.scratch) == 0 {
		return
	}
	o.content = append(o.content, o.scratch...)
	o.scratch = o.scratch[:0]
}

// TakeBuffer returns and clears the scratch buffer without touching
// content.
func (o *Output) TakeBuffer() []byte {
	b := o.scratch
	o.scratch = nil
	return b
}

// ClearBuffer discards the scratch buffer's contents, e.g. when a tag has
// been recognised and its raw source must not appear in the output.
func (o *Output) ClearBuffer() {
	o.scratch = o.scratch[:0]
}

// TakeContent returns and clears the content accumulator.
func (o *Output) TakeContent() []byte {
	b := o.content
	o.content = nil
	return b
}

// WriteContentToDestination writes the content accumulator to the
// destination sink and clears it. Per spec §4.3/§5, this must be called
// exactly once, by the top-level parse.
func (o *Output) WriteContentToDestination() error {
	if len(o.content) == 0 {
		return nil
	}
	_, err := o.destination.Write(o.content)
	o.content = nil
	return err
}

// FlushBufferAndFile flushes any pending scratch content, then appends
// the named file's contents to content, joining its lines with "\n" and
// emitting no trailing newline (the last line is written as-is) per spec
// §4.3. Used by the `include` tag.
func (o *Output) FlushBufferAndFile(path string) error {
	o.FlushBufferToContent()

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	text := string(data)
	hadTrailingNewline := strings.HasSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	if hadTrailingNewline && len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}
	o.content = append(o.content, []byte(strings.Join(lines, "\n"))...)
	return nil
}
