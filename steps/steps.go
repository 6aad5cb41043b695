// Package steps implements spec §4.5's shared parsing primitives: the
// low-level building blocks every tag parser in the template package (and
// the IfParser) compose to read whitespace, literals, identifiers,
// numbers, strings, and function signatures/call-sites off an Input.
package steps

import (
	"strconv"
	"strings"

	"github.com/oh-clever/arcana/envctx"
	"github.com/oh-clever/arcana/errs"
	"github.com/oh-clever/arcana/input"
	"github.com/oh-clever/arcana/output"
)

// IsSpace reports whether r is tag-body whitespace: space, tab, carriage
// return, or newline. Tag bodies may wrap across lines since only a
// single separating space is ever semantically required (spec §6).
func IsSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n':
		return true
	default:
		return false
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || r == '.'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// BypassWhitespace skips a run of whitespace without copying it anywhere.
func BypassWhitespace(in *input.Input) error {
	for !in.IsEnd() && IsSpace(in.Current()) {
		if err := in.Step(); err != nil {
			return err
		}
	}
	return nil
}

// BufferWhitespace copies a run of whitespace into out's scratch buffer.
func BufferWhitespace(in *input.Input, out *output.Output) error {
	for !in.IsEnd() && IsSpace(in.Current()) {
		out.WriteChar(in.Current())
		if err := in.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RequireSpace enforces at least one whitespace character before
// bypassing the rest of the run, for tags whose grammar needs a
// separating space (e.g. between a tag name and its first argument).
func RequireSpace(in *input.Input, tag string) error {
	if in.IsEnd() || !IsSpace(in.Current()) {
		return errs.Newf(errs.KindUnexpectedCharacter, "%s: expected a space", tag)
	}
	return BypassWhitespace(in)
}

// BufferAllWhile accumulates characters while pred holds, stopping at the
// first character that doesn't (or at end of input).
func BufferAllWhile(in *input.Input, pred func(rune) bool) string {
	var b strings.Builder
	for !in.IsEnd() && pred(in.Current()) {
		b.WriteRune(in.Current())
		_ = in.Step()
	}
	return b.String()
}

// BufferAllUntil accumulates characters until pred holds (or end of
// input), without consuming the character that satisfies pred.
func BufferAllUntil(in *input.Input, pred func(rune) bool) string {
	var b strings.Builder
	for !in.IsEnd() && !pred(in.Current()) {
		b.WriteRune(in.Current())
		_ = in.Step()
	}
	return b.String()
}

// PeekSequence reports whether the literal runes of seq occur starting at
// Current, without consuming anything.
func PeekSequence(in *input.Input, seq string) bool {
	runes := []rune(seq)
	if len(runes) == 0 {
		return true
	}
	if in.IsEnd() || in.Current() != runes[0] {
		return false
	}
	for i := 1; i < len(runes); i++ {
		if in.PeekAt(i-1) != runes[i] {
			return false
		}
	}
	return true
}

// ConsumeSequence steps past len(seq) runes, which the caller must
// already know (e.g. via PeekSequence) match the literal text of seq.
func ConsumeSequence(in *input.Input, seq string) error {
	for range seq {
		if err := in.Step(); err != nil {
			return err
		}
	}
	return nil
}

// ExpectSequence requires seq to occur at Current, consumes it, and
// otherwise raises an UnexpectedCharacter naming tag and seq.
func ExpectSequence(in *input.Input, tag, seq string) error {
	if !PeekSequence(in, seq) {
		return errs.Newf(errs.KindUnexpectedCharacter, "%s: expected %q", tag, seq)
	}
	return ConsumeSequence(in, seq)
}

// ExpectEndOfTag consumes a block tag's closing "%}".
func ExpectEndOfTag(in *input.Input, tag string) error {
	if err := BypassWhitespace(in); err != nil {
		return err
	}
	return ExpectSequence(in, tag, "%}")
}

// ExpectSelfClose consumes a self-closing tag's "/%}".
func ExpectSelfClose(in *input.Input, tag string) error {
	if err := BypassWhitespace(in); err != nil {
		return err
	}
	return ExpectSequence(in, tag, "/%}")
}

// ExpectEndOfExpression consumes an expression form's closing "}}".
func ExpectEndOfExpression(in *input.Input, tag string) error {
	if err := BypassWhitespace(in); err != nil {
		return err
	}
	return ExpectSequence(in, tag, "}}")
}

// BufferAllUntilSequence consumes verbatim (honouring `\` as a
// one-character escape that captures both characters literally) until the
// literal sequence seq appears, which it also consumes. End of input
// before seq appears is a fatal UnexpectedEof naming tag.
func BufferAllUntilSequence(in *input.Input, tag, seq string) (string, error) {
	var b strings.Builder
	for {
		if in.IsEnd() {
			return "", errs.Newf(errs.KindUnexpectedEof, "%s: unexpected end of input while looking for %q", tag, seq)
		}
		if in.Current() == '\\' {
			b.WriteByte('\\')
			if err := in.Step(); err != nil {
				return "", err
			}
			if in.IsEnd() {
				return "", errs.Newf(errs.KindUnexpectedEof, "%s: unexpected end of input after escape", tag)
			}
			b.WriteRune(in.Current())
			if err := in.Step(); err != nil {
				return "", err
			}
			continue
		}
		if PeekSequence(in, seq) {
			if err := ConsumeSequence(in, seq); err != nil {
				return "", err
			}
			return b.String(), nil
		}
		b.WriteRune(in.Current())
		if err := in.Step(); err != nil {
			return "", err
		}
	}
}

// ParseVariableName parses spec §4.5's identifier grammar: first
// character in [A-Za-z_], remainder in [A-Za-z0-9_.].
func ParseVariableName(in *input.Input, tag string) (string, error) {
	if in.IsEnd() || !isIdentStart(in.Current()) {
		return "", errs.Newf(errs.KindUnexpectedCharacter, "%s: expected an identifier", tag)
	}
	return BufferAllWhile(in, isIdentPart), nil
}

// ParseTextString parses a double-quoted string literal with `\"` as the
// only recognised escape; every other backslash is preserved literally
// (spec §4.5).
func ParseTextString(in *input.Input, tag string) (string, error) {
	if in.IsEnd() || in.Current() != '"' {
		return "", errs.Newf(errs.KindUnexpectedCharacter, "%s: expected a string literal", tag)
	}
	if err := in.Step(); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		if in.IsEnd() {
			return "", errs.Newf(errs.KindUnexpectedEof, "%s: unterminated string literal", tag)
		}
		if in.Current() == '\\' && in.PeekAt(0) == '"' {
			b.WriteByte('"')
			if err := in.Step(); err != nil {
				return "", err
			}
			if err := in.Step(); err != nil {
				return "", err
			}
			continue
		}
		if in.Current() == '"' {
			if err := in.Step(); err != nil {
				return "", err
			}
			return b.String(), nil
		}
		b.WriteRune(in.Current())
		if err := in.Step(); err != nil {
			return "", err
		}
	}
}

// ParseNumber parses a signed decimal integer literal, [-+]?[0-9]+
// (spec §4.5), returning its exact matched text.
func ParseNumber(in *input.Input, tag string) (string, error) {
	var b strings.Builder
	if !in.IsEnd() && (in.Current() == '-' || in.Current() == '+') {
		b.WriteRune(in.Current())
		if err := in.Step(); err != nil {
			return "", err
		}
	}
	if in.IsEnd() || !isDigit(in.Current()) {
		return "", errs.Newf(errs.KindBadNumber, "%s: expected a number", tag)
	}
	b.WriteString(BufferAllWhile(in, isDigit))
	return b.String(), nil
}

// ParseValue parses spec §4.5's parse_value: a quoted string, a numeric
// literal, or a variable lookup. The second return value is false only
// for an unbound variable ("none").
func ParseValue(in *input.Input, ctx *envctx.Context, tag string) (string, bool, error) {
	if in.IsEnd() {
		return "", false, errs.Newf(errs.KindUnexpectedEof, "%s: expected a value", tag)
	}
	switch {
	case in.Current() == '"':
		s, err := ParseTextString(in, tag)
		return s, true, err
	case isDigit(in.Current()) || ((in.Current() == '-' || in.Current() == '+') && isDigit(in.PeekAt(0))):
		n, err := ParseNumber(in, tag)
		return n, true, err
	case isIdentStart(in.Current()):
		name, err := ParseVariableName(in, tag)
		if err != nil {
			return "", false, err
		}
		v, ok := ctx.Value(name)
		return v, ok, nil
	default:
		return "", false, errs.Newf(errs.KindUnexpectedCharacter, "%s: expected a string, number, or variable", tag)
	}
}

// ParseValueAsPath parses spec §4.5's parse_value_as_path: a string value
// is joined to in's directory; a variable value is resolved via the
// context's owning-path-aware Path lookup. ok is false when a variable
// name was given but is unbound.
func ParseValueAsPath(in *input.Input, ctx *envctx.Context, tag string) (string, bool, error) {
	if in.IsEnd() {
		return "", false, errs.Newf(errs.KindUnexpectedEof, "%s: expected a path", tag)
	}
	if in.Current() == '"' {
		s, err := ParseTextString(in, tag)
		if err != nil {
			return "", false, err
		}
		return in.JoinPath(s), true, nil
	}
	name, err := ParseVariableName(in, tag)
	if err != nil {
		return "", false, err
	}
	p, ok := ctx.Path(name)
	return p, ok, nil
}

// ParseValueAsNumber parses a value and coerces it to an int64 by decimal
// parse, failing if the value is none or doesn't parse as an integer.
func ParseValueAsNumber(in *input.Input, ctx *envctx.Context, tag string) (int64, error) {
	v, ok, err := ParseValue(in, ctx, tag)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errs.Newf(errs.KindBadNumber, "%s: value is unbound", tag)
	}
	n, parseErr := strconv.ParseInt(v, 10, 64)
	if parseErr != nil {
		return 0, errs.Newf(errs.KindBadNumber, "%s: %q is not a valid number", tag, v)
	}
	return n, nil
}

// ParseFunctionArgs parses a comma-separated parenthesized list of
// parameter names: `(a, b, c)`, with whitespace tolerated between
// tokens. Used by `fn`'s signature.
func ParseFunctionArgs(in *input.Input, tag string) ([]string, error) {
	if err := ExpectSequence(in, tag, "("); err != nil {
		return nil, err
	}
	if err := BypassWhitespace(in); err != nil {
		return nil, err
	}
	var names []string
	if !in.IsEnd() && in.Current() == ')' {
		if err := in.Step(); err != nil {
			return nil, err
		}
		return names, nil
	}
	for {
		name, err := ParseVariableName(in, tag)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if err := BypassWhitespace(in); err != nil {
			return nil, err
		}
		if !in.IsEnd() && in.Current() == ',' {
			if err := in.Step(); err != nil {
				return nil, err
			}
			if err := BypassWhitespace(in); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := ExpectSequence(in, tag, ")"); err != nil {
		return nil, err
	}
	return names, nil
}

// Arg is one evaluated call-site argument: its text value and whether it
// was bound (a bare unbound variable name is still a valid call argument
// that resolves to "missing", per spec §4.7's function call semantics).
type Arg struct {
	Value string
	OK    bool
}

// ParseFunctionArgValues parses a comma-separated parenthesized list of
// values (strings, numbers, or variables): `("a", n, x)`. Used by a
// function call-site `{{ name(args) }}`.
func ParseFunctionArgValues(in *input.Input, ctx *envctx.Context, tag string) ([]Arg, error) {
	if err := ExpectSequence(in, tag, "("); err != nil {
		return nil, err
	}
	if err := BypassWhitespace(in); err != nil {
		return nil, err
	}
	var args []Arg
	if !in.IsEnd() && in.Current() == ')' {
		if err := in.Step(); err != nil {
			return nil, err
		}
		return args, nil
	}
	for {
		v, ok, err := ParseValue(in, ctx, tag)
		if err != nil {
			return nil, err
		}
		args = append(args, Arg{Value: v, OK: ok})
		if err := BypassWhitespace(in); err != nil {
			return nil, err
		}
		if !in.IsEnd() && in.Current() == ',' {
			if err := in.Step(); err != nil {
				return nil, err
			}
			if err := BypassWhitespace(in); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := ExpectSequence(in, tag, ")"); err != nil {
		return nil, err
	}
	return args, nil
}
