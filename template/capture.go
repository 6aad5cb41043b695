package template

import (
	"github.com/oh-clever/arcana/errs"
	"github.com/oh-clever/arcana/input"
	"github.com/oh-clever/arcana/sentinel"
	"github.com/oh-clever/arcana/steps"
)

// captureBlock implements spec §9's "bypass" collection in one generic
// pass rather than a duplicated evaluate/bypass arm per tag: it scans
// forward from the current position (just past a block tag's opening
// `%}`) tracking nesting of *every* block tag it passes through — not
// just recurrences of tagName itself — and returns the raw source text of
// the body (and, if allowElse and an `else` belonging to this capture is
// hit at zero nesting, the raw source of the else-branch too). A nested
// block tag's own `else`/end-tag is consumed while scanning through it and
// never mistaken for this capture's boundary, mirroring how the original
// recursively dispatches into nested tags' own bypass sub-parses rather
// than flattening everything to a single same-name depth counter. Both
// segments are later re-parsed as limited inputs by the caller. Backslash
// is a one-character escape throughout (spec §7): `\` plus the following
// character are both treated as ordinary body bytes, never as tag syntax.
func captureBlock(in *input.Input, tagName string, allowElse bool) (body, elseBody string, hitElse bool, err error) {
	bodyStart := in.Mark()
	segmentStart := bodyStart
	var open []string // block tags opened inside this capture, innermost last
	collectingElse := false

	for {
		if in.IsEnd() {
			return "", "", false, errs.Newf(errs.KindUnexpectedEof, "%s: unterminated block, expected {%% /%s %%}", tagName, tagName)
		}

		if in.Current() == '\\' {
			if err := in.Step(); err != nil {
				return "", "", false, err
			}
			if in.IsEnd() {
				return "", "", false, errs.Newf(errs.KindUnexpectedEof, "%s: unexpected end of input after escape", tagName)
			}
			if err := in.Step(); err != nil {
				return "", "", false, err
			}
			continue
		}

		if in.Current() != '{' || in.Peek() != '%' {
			if err := in.Step(); err != nil {
				return "", "", false, err
			}
			continue
		}

		beforeTag := in.Mark()
		if err := steps.ConsumeSequence(in, "{%"); err != nil {
			return "", "", false, err
		}
		if err := steps.BypassWhitespace(in); err != nil {
			return "", "", false, err
		}

		isEndTag := false
		if !in.IsEnd() && in.Current() == '/' {
			isEndTag = true
			if err := in.Step(); err != nil {
				return "", "", false, err
			}
			if err := steps.BypassWhitespace(in); err != nil {
				return "", "", false, err
			}
		}

		name, nameErr := steps.ParseVariableName(in, tagName)
		if nameErr != nil {
			// Not actually an identifier after `{%` (or `{%/`) — just a
			// stray `{` in body text; rewind and consume it literally.
			in.Reset(beforeTag)
			if err := in.Step(); err != nil {
				return "", "", false, err
			}
			continue
		}
		if err := steps.BypassWhitespace(in); err != nil {
			return "", "", false, err
		}
		if _, known := sentinel.ForTagName(name); isEndTag && !known {
			return "", "", false, errs.New(errs.KindUnknownEndTag, "unknown end tag \"/"+name+"\"").
				WithSuggestions(errs.Suggest(name, blockTagNames))
		}

		switch {
		case isEndTag && len(open) > 0:
			// Closes whichever block tag this capture most recently
			// entered, not this capture's own boundary.
			if name != open[len(open)-1] {
				return "", "", false, errs.Newf(errs.KindUnexpectedEndTag, "unexpected end tag \"/%s\", expected \"/%s\"", name, open[len(open)-1])
			}
			if err := steps.ExpectEndOfTag(in, name); err != nil {
				return "", "", false, err
			}
			open = open[:len(open)-1]

		case isEndTag && name == tagName:
			if err := steps.ExpectEndOfTag(in, name); err != nil {
				return "", "", false, err
			}
			text := in.TextRange(segmentStart, beforeTag)
			if collectingElse {
				elseBody = text
			} else {
				body = text
			}
			return body, elseBody, hitElse, nil

		case isEndTag:
			return "", "", false, errs.New(errs.KindUnexpectedEndTag, "unexpected end tag \"/"+name+"\"")

		case name == "else" && len(open) == 0 && allowElse && !collectingElse:
			if err := steps.ExpectEndOfTag(in, "else"); err != nil {
				return "", "", false, err
			}
			body = in.TextRange(segmentStart, beforeTag)
			hitElse = true
			collectingElse = true
			segmentStart = in.Mark()

		default:
			if _, err := steps.BufferAllUntilSequence(in, name, "%}"); err != nil {
				return "", "", false, err
			}
			// A nested block tag's own else (handled above when len(open)
			// == 0) falls through here once open is non-empty; only an
			// actual opening tag needs to be tracked for later matching.
			if _, ok := sentinel.ForTagName(name); ok {
				open = append(open, name)
			}
		}
	}
}
