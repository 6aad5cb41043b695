// Package ifparser implements spec §4.6's IfParser: the boolean expression
// grammar shared by `{% if %}` and `{% assert %}`. It is a small recursive
// descent evaluator over comparisons joined by `&&`/`||` (left to right, no
// precedence climbing — spec §4.6 is explicit that the grammar is flat and
// evaluated strictly left to right) with short-circuit evaluation, and
// parenthesised sub-expressions recursing structurally rather than via an
// explicit sentinel depth parameter.
package ifparser

import (
	"strconv"
	"strings"

	"github.com/oh-clever/arcana/envctx"
	"github.com/oh-clever/arcana/errs"
	"github.com/oh-clever/arcana/input"
	"github.com/oh-clever/arcana/steps"
)

// Evaluate parses and evaluates a boolean expression starting at in's
// current position, stopping at (without consuming) the first character
// outside parentheses that follows a complete term and is not `&&` or
// `||` — in practice the start of the enclosing tag's `%}` or `/%}`.
// Short-circuited comparisons to the right of a decisive `&&`/`||` are
// still parsed (for correct cursor placement) but their values are
// discarded.
func Evaluate(in *input.Input, ctx *envctx.Context, tag string) (bool, error) {
	return parseExpr(in, ctx, tag)
}

func parseExpr(in *input.Input, ctx *envctx.Context, tag string) (bool, error) {
	result, err := parseTerm(in, ctx, tag)
	if err != nil {
		return false, err
	}
	for {
		if err := steps.BypassWhitespace(in); err != nil {
			return false, err
		}
		op, ok := peekLogicalOp(in)
		if !ok {
			return result, nil
		}
		if err := steps.ConsumeSequence(in, op); err != nil {
			return false, err
		}
		if err := steps.BypassWhitespace(in); err != nil {
			return false, err
		}

		switch op {
		case "&&":
			if !result {
				// Short-circuited: still parse the right side to leave the
				// cursor in the right place, but its value doesn't matter.
				if _, err := parseTerm(in, ctx, tag); err != nil {
					return false, err
				}
				continue
			}
			rhs, err := parseTerm(in, ctx, tag)
			if err != nil {
				return false, err
			}
			result = rhs
		case "||":
			if result {
				if _, err := parseTerm(in, ctx, tag); err != nil {
					return false, err
				}
				continue
			}
			rhs, err := parseTerm(in, ctx, tag)
			if err != nil {
				return false, err
			}
			result = rhs
		}
	}
}

// parseTerm parses either a parenthesised sub-expression or a single
// comparison.
func parseTerm(in *input.Input, ctx *envctx.Context, tag string) (bool, error) {
	if err := steps.BypassWhitespace(in); err != nil {
		return false, err
	}
	if !in.IsEnd() && in.Current() == '(' {
		if err := in.Step(); err != nil {
			return false, err
		}
		result, err := parseExpr(in, ctx, tag)
		if err != nil {
			return false, err
		}
		if err := steps.BypassWhitespace(in); err != nil {
			return false, err
		}
		if in.IsEnd() || in.Current() != ')' {
			return false, errs.Newf(errs.KindUnexpectedCharacter, "%s: expected ')'", tag)
		}
		if err := in.Step(); err != nil {
			return false, err
		}
		return result, nil
	}
	if !in.IsEnd() && in.Current() == '!' {
		if err := in.Step(); err != nil {
			return false, err
		}
		result, err := parseTerm(in, ctx, tag)
		if err != nil {
			return false, err
		}
		return !result, nil
	}
	return parseComparison(in, ctx, tag)
}

// parseComparison parses `lhs OP rhs` or a bare truthiness check of lhs
// when no comparison operator follows.
func parseComparison(in *input.Input, ctx *envctx.Context, tag string) (bool, error) {
	lhs, lhsOK, err := steps.ParseValue(in, ctx, tag)
	if err != nil {
		return false, err
	}

	if err := steps.BypassWhitespace(in); err != nil {
		return false, err
	}
	op, ok := peekComparisonOp(in)
	if !ok {
		return envctx.Truthy(lhs, lhsOK), nil
	}
	if err := steps.ConsumeSequence(in, op); err != nil {
		return false, err
	}
	if err := steps.BypassWhitespace(in); err != nil {
		return false, err
	}
	rhs, rhsOK, err := steps.ParseValue(in, ctx, tag)
	if err != nil {
		return false, err
	}
	return compareValues(op, lhs, lhsOK, rhs, rhsOK)
}

func compareValues(op, lhs string, lhsOK bool, rhs string, rhsOK bool) (bool, error) {
	switch op {
	case "==":
		return stringCompareWithNone(lhs, lhsOK, rhs, rhsOK) == 0, nil
	case "!=":
		return stringCompareWithNone(lhs, lhsOK, rhs, rhsOK) != 0, nil
	}

	// Ordering never errors: integer comparison is attempted first, and
	// falls back to string comparison (with an absent operand sorting
	// before any present value) whenever either side is unbound or isn't a
	// 64-bit signed integer.
	cmp := orderingCompare(lhs, lhsOK, rhs, rhsOK)
	switch op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	default:
		return false, errs.Newf(errs.KindBadState, "unreachable comparison operator %q", op)
	}
}

// orderingCompare implements spec §4.6's ordering rule for <, <=, >, >=:
// both sides are parsed as 64-bit signed integers when possible, and that
// comparison wins; otherwise (either side unbound, or either fails to
// parse as an integer) it falls back to stringCompareWithNone.
func orderingCompare(lhs string, lhsOK bool, rhs string, rhsOK bool) int {
	if lhsOK && rhsOK {
		ln, lerr := strconv.ParseInt(lhs, 10, 64)
		rn, rerr := strconv.ParseInt(rhs, 10, 64)
		if lerr == nil && rerr == nil {
			switch {
			case ln < rn:
				return -1
			case ln > rn:
				return 1
			default:
				return 0
			}
		}
	}
	return stringCompareWithNone(lhs, lhsOK, rhs, rhsOK)
}

// stringCompareWithNone orders two optionally-unbound values: both unbound
// compares equal, an unbound value sorts before any bound value of any
// text (including the empty string), both bound compares by exact text.
func stringCompareWithNone(lhs string, lhsOK bool, rhs string, rhsOK bool) int {
	if !lhsOK && !rhsOK {
		return 0
	}
	if !lhsOK {
		return -1
	}
	if !rhsOK {
		return 1
	}
	return strings.Compare(lhs, rhs)
}

// peekLogicalOp reports whether "&&" or "||" occurs at Current, returning
// which one without consuming it.
func peekLogicalOp(in *input.Input) (string, bool) {
	switch {
	case steps.PeekSequence(in, "&&"):
		return "&&", true
	case steps.PeekSequence(in, "||"):
		return "||", true
	default:
		return "", false
	}
}

// peekComparisonOp reports whether a comparison operator occurs at
// Current, longest match first so "<=" isn't mistaken for "<".
func peekComparisonOp(in *input.Input) (string, bool) {
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if steps.PeekSequence(in, op) {
			return op, true
		}
	}
	return "", false
}
