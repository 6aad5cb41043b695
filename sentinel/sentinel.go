// Package sentinel names the tokens that terminate a TemplateParser
// sub-parse and the way a sub-parse actually ended. A ParseUntil value is
// handed to a child parser when it is spawned; the EndPosition it returns
// tells the caller which of the possible stop conditions was hit.
package sentinel

// ParseUntil names the end-tag (or absence of one) that should stop a
// TemplateParser's character loop.
type ParseUntil int

const (
	// EndOfInput means "run until the input is exhausted" — used for the
	// top-level parse and for unsealed/sealed children that render a whole
	// file rather than a single block's body.
	EndOfInput ParseUntil = iota
	EndIf
	EndSet
	EndFn
	EndForeach
	EndFordir
	EndForfile
	EndForsplit
	EndAdd
	EndSub
	EndMul
	EndDiv
	EndMod
	EndPow
	EndNth
)

// TagName returns the block tag name associated with this terminator, e.g.
// EndForeach -> "foreach". EndOfInput has no tag name.
func (p ParseUntil) TagName() string {
	switch p {
	case EndIf:
		return "if"
	case EndSet:
		return "set"
	case EndFn:
		return "fn"
	case EndForeach:
		return "foreach"
	case EndFordir:
		return "fordir"
	case EndForfile:
		return "forfile"
	case EndForsplit:
		return "forsplit"
	case EndAdd:
		return "add"
	case EndSub:
		return "sub"
	case EndMul:
		return "mul"
	case EndDiv:
		return "div"
	case EndMod:
		return "mod"
	case EndPow:
		return "pow"
	case EndNth:
		return "nth"
	default:
		return ""
	}
}

// AllowsElse reports whether an `{% else %}` encountered while scanning for
// this terminator belongs to the enclosing block (if/foreach/fordir/forfile/
// forsplit) rather than being a stray, unexpected tag.
func (p ParseUntil) AllowsElse() bool {
	switch p {
	case EndIf, EndForeach, EndFordir, EndForfile, EndForsplit:
		return true
	default:
		return false
	}
}

// ForTagName maps a block tag's name back to its terminator, the inverse of
// TagName. The second return value is false for names with no block form.
func ForTagName(name string) (ParseUntil, bool) {
	switch name {
	case "if":
		return EndIf, true
	case "set":
		return EndSet, true
	case "fn":
		return EndFn, true
	case "foreach":
		return EndForeach, true
	case "fordir":
		return EndFordir, true
	case "forfile":
		return EndForfile, true
	case "forsplit":
		return EndForsplit, true
	case "add":
		return EndAdd, true
	case "sub":
		return EndSub, true
	case "mul":
		return EndMul, true
	case "div":
		return EndDiv, true
	case "mod":
		return EndMod, true
	case "pow":
		return EndPow, true
	case "nth":
		return EndNth, true
	default:
		return EndOfInput, false
	}
}

// EndPosition is what a child parser actually hit when it stopped.
type EndPosition int

const (
	// EndNone is the zero value: the parser has not stopped yet.
	EndNone EndPosition = iota
	// EndMatched means the expected `{% /tag %}` was consumed.
	EndMatched
	// EndElseFound means an `{% else %}` belonging to this block was
	// consumed; the parent should now collect the else-branch.
	EndElseFound
	// EndOfInputReached means the input ran out before a matching end tag
	// was found; only valid when ParseUntil is EndOfInput.
	EndOfInputReached
)
