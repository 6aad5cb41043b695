package template

import (
	"strconv"
	"strings"

	"github.com/oh-clever/arcana/errs"
	"github.com/oh-clever/arcana/sentinel"
	"github.com/oh-clever/arcana/steps"
)

var arithUntil = map[string]sentinel.ParseUntil{
	"add": sentinel.EndAdd,
	"sub": sentinel.EndSub,
	"mul": sentinel.EndMul,
	"div": sentinel.EndDiv,
	"mod": sentinel.EndMod,
	"pow": sentinel.EndPow,
}

// parseArithmetic implements the six arithmetic block tags: `{% name
// left %} body {% /name %}`. left is parsed as a number off the tag's own
// header; the body is rendered as an ordinary child parse (not bypass —
// it may itself contain tags) and the rendered text, trimmed, is parsed
// into right. The operation is then applied as "body OP header" (right OP
// left), as explained below.
func (p *Parser) parseArithmetic(name string) error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	left, err := steps.ParseValueAsNumber(p.in, p.ctx, name)
	if err != nil {
		return err
	}
	if err := steps.ExpectEndOfTag(p.in, name); err != nil {
		return err
	}

	p.out.FlushBufferToContent()
	savedContent := p.out.TakeContent()
	child := p.spawnUnsealed(arithUntil[name])
	if err := child.Parse(); err != nil {
		return err
	}
	child.out.FlushBufferToContent()
	rendered := strings.TrimSpace(string(child.out.TakeContent()))
	p.out.WriteBytesToBuffer(savedContent)
	p.out.FlushBufferToContent()

	right, err := strconv.ParseInt(rendered, 10, 64)
	if err != nil {
		return errs.Newf(errs.KindBadNumber, "%s: body %q is not a number", name, rendered)
	}

	// The body holds the running value (e.g. the accumulator bound by an
	// enclosing `set`); the tag's own header holds the operand applied to
	// it, so the operation reads "body OP header", not the reverse — pow's
	// documented example (body 5, operand 2 -> 25, i.e. 5^2) only holds
	// under this order.
	result, err := arithmeticResult(name, right, left)
	if err != nil {
		return err
	}

	p.out.WriteStr(strconv.FormatInt(result, 10))
	p.out.FlushBufferToContent()
	return nil
}

// arithmeticResult computes name(left, right). Callers pass the body's
// value as left and the tag header's operand as right.
func arithmeticResult(name string, left, right int64) (int64, error) {
	switch name {
	case "add":
		return left + right, nil
	case "sub":
		return left - right, nil
	case "mul":
		return left * right, nil
	case "div":
		if right == 0 {
			return 0, nil
		}
		return left / right, nil
	case "mod":
		if right == 0 {
			return 0, nil
		}
		return left % right, nil
	case "pow":
		return unsignedPow(left, right)
	default:
		return 0, errs.Newf(errs.KindBadState, "unreachable arithmetic tag %q", name)
	}
}

// unsignedPow implements pow's documented semantics: both operands must
// fit in an unsigned 32-bit integer, and the result must too; any
// violation is an OverflowInPow error.
func unsignedPow(base, exp int64) (int64, error) {
	if base < 0 || base > int64(^uint32(0)) || exp < 0 || exp > int64(^uint32(0)) {
		return 0, errs.New(errs.KindOverflowInPow, "pow: operands must fit in an unsigned 32-bit integer")
	}
	var result uint64 = 1
	b := uint64(base)
	for i := int64(0); i < exp; i++ {
		result *= b
		if result > uint64(^uint32(0)) {
			return 0, errs.New(errs.KindOverflowInPow, "pow: result overflows an unsigned 32-bit integer")
		}
	}
	return int64(result), nil
}

// parseNth implements `{% nth name %} INDEX {% /nth %}`: the body renders
// to an integer index (the literal "-0" meaning "last", since Go's int
// has no negative zero to carry that meaning through unchanged).
func (p *Parser) parseNth() error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	name, err := steps.ParseVariableName(p.in, "nth")
	if err != nil {
		return err
	}
	if err := steps.ExpectEndOfTag(p.in, "nth"); err != nil {
		return err
	}

	p.out.FlushBufferToContent()
	savedContent := p.out.TakeContent()
	child := p.spawnUnsealed(sentinel.EndNth)
	if err := child.Parse(); err != nil {
		return err
	}
	child.out.FlushBufferToContent()
	rendered := strings.TrimSpace(string(child.out.TakeContent()))
	p.out.WriteBytesToBuffer(savedContent)
	p.out.FlushBufferToContent()

	var idx int64
	if rendered == "-0" {
		idx = -1
	} else {
		idx, err = strconv.ParseInt(rendered, 10, 64)
		if err != nil {
			return errs.Newf(errs.KindBadNumber, "nth: body %q is not a number", rendered)
		}
	}

	value, _ := p.ctx.NthValue(name, int(idx))
	p.out.WriteStr(value)
	p.out.FlushBufferToContent()
	return nil
}

// parseCount implements self-closing `{% count name /%}`: writes the
// current stack size for name.
func (p *Parser) parseCount() error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	name, err := steps.ParseVariableName(p.in, "count")
	if err != nil {
		return err
	}
	if err := steps.ExpectSelfClose(p.in, "count"); err != nil {
		return err
	}
	p.out.WriteStr(strconv.Itoa(p.ctx.StackSize(name)))
	p.out.FlushBufferToContent()
	return nil
}

// parseLength implements self-closing `{% length value /%}`: writes the
// byte length of value's UTF-8 encoding.
func (p *Parser) parseLength() error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	value, _, err := steps.ParseValue(p.in, p.ctx, "length")
	if err != nil {
		return err
	}
	if err := steps.ExpectSelfClose(p.in, "length"); err != nil {
		return err
	}
	p.out.WriteStr(strconv.Itoa(len(value)))
	p.out.FlushBufferToContent()
	return nil
}
