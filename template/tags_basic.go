package template

import (
	"os"

	"github.com/oh-clever/arcana/errs"
	"github.com/oh-clever/arcana/ifparser"
	"github.com/oh-clever/arcana/sentinel"
	"github.com/oh-clever/arcana/steps"
)

// parseSet implements `{% set name %} ... {% /set %}`: runs a sealed
// child over the body until its matching end tag, then pushes the
// child's rendered content as a new binding for name, owned by the
// current input's path.
func (p *Parser) parseSet() error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	name, err := steps.ParseVariableName(p.in, "set")
	if err != nil {
		return err
	}
	if err := steps.ExpectEndOfTag(p.in, "set"); err != nil {
		return err
	}

	p.out.FlushBufferToContent()
	savedContent := p.out.TakeContent()

	child := p.spawnSealed(sentinel.EndSet)
	if err := child.Parse(); err != nil {
		return err
	}
	child.out.FlushBufferToContent()
	rendered := string(child.out.TakeContent())

	p.out.WriteBytesToBuffer(savedContent)
	p.out.FlushBufferToContent()

	p.ctx.AddVariable(name, p.in.Path(), rendered)
	return nil
}

// parseFn implements `{% fn name(params) %} ... {% /fn %}`: captures the
// body verbatim (bypass) without evaluating it, and pushes a function
// definition. Also documented under the names "macro"/"def" for authors
// coming from other templating engines — no separate syntax exists.
func (p *Parser) parseFn() error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	name, err := steps.ParseVariableName(p.in, "fn")
	if err != nil {
		return err
	}
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	params, err := steps.ParseFunctionArgs(p.in, "fn")
	if err != nil {
		return err
	}
	if err := steps.ExpectEndOfTag(p.in, "fn"); err != nil {
		return err
	}

	body, _, _, err := captureBlock(p.in, "fn", false)
	if err != nil {
		return err
	}
	p.ctx.AddFunction(name, params, body)
	return nil
}

// parseCall implements self-closing `{% call path /%}`: evaluates the
// named file as an unsealed child, so its variable/function mutations
// are visible to the caller afterward.
func (p *Parser) parseCall() error {
	return p.runFileAsChild(sentinel.EndOfInput, false)
}

// parseCompile implements self-closing `{% compile path /%}`: evaluates
// the named file as a sealed child, so its mutations never leak back.
func (p *Parser) parseCompile() error {
	return p.runFileAsChild(sentinel.EndOfInput, true)
}

func (p *Parser) runFileAsChild(until sentinel.ParseUntil, sealed bool) error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	path, ok, err := steps.ParseValueAsPath(p.in, p.ctx, "call/compile")
	if err != nil {
		return err
	}
	if !ok {
		return errs.Newf(errs.KindBadPath, "call/compile: path variable is unbound")
	}
	if err := steps.ExpectSelfClose(p.in, "call/compile"); err != nil {
		return err
	}

	childIn, err := openTemplate(path)
	if err != nil {
		return err
	}

	p.out.FlushBufferToContent()
	ctx := p.ctx
	if sealed {
		ctx = p.ctx.Clone()
	}
	child := &Parser{ctx: ctx, in: childIn, out: p.out, until: until}
	return child.Parse()
}

// parseInclude implements self-closing `{% include path /%}`: copies the
// named file's contents verbatim into output, line-joined per §4.3 (no
// trailing newline).
func (p *Parser) parseInclude() error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	path, ok, err := steps.ParseValueAsPath(p.in, p.ctx, "include")
	if err != nil {
		return err
	}
	if !ok {
		return errs.Newf(errs.KindBadPath, "include: path variable is unbound")
	}
	if err := steps.ExpectSelfClose(p.in, "include"); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return errs.Newf(errs.KindBadPath, "%s: %v", path, err)
	}
	return p.out.FlushBufferAndFile(path)
}

// parseExtend implements self-closing `{% extend path /%}`: records the
// target; the actual recursion happens once this parse reaches
// end-of-input (see Parser.handleEOF).
func (p *Parser) parseExtend() error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	path, ok, err := steps.ParseValueAsPath(p.in, p.ctx, "extend")
	if err != nil {
		return err
	}
	if !ok {
		return errs.Newf(errs.KindBadPath, "extend: path variable is unbound")
	}
	if err := steps.ExpectSelfClose(p.in, "extend"); err != nil {
		return err
	}
	p.extendTarget = path
	return nil
}

// parseIf implements `{% if cond %} ... [{% else %} ...] {% /if %}`: the
// condition is evaluated via ifparser eagerly, but the body is always
// collected in bypass mode first and only the winning branch is re-parsed
// (as a limited, unsealed input — §4.7 specifies re-parsing "content",
// not a sealed clone, so bindings made inside an if body are visible
// after it).
func (p *Parser) parseIf() error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	cond, err := ifparser.Evaluate(p.in, p.ctx, "if")
	if err != nil {
		return err
	}
	if err := steps.ExpectEndOfTag(p.in, "if"); err != nil {
		return err
	}

	body, elseBody, hitElse, err := captureBlock(p.in, "if", true)
	if err != nil {
		return err
	}

	var chosen string
	var run bool
	switch {
	case cond:
		chosen, run = body, true
	case hitElse:
		chosen, run = elseBody, true
	}
	if !run {
		return nil
	}

	p.out.FlushBufferToContent()
	child := spawnLimited(chosen, p.in.Path(), p.ctx, p.out)
	return child.Parse()
}

// parseAssert implements self-closing `{% assert cond /%}`: fails the
// whole parse with a distinct AssertionFailed error if cond is false.
func (p *Parser) parseAssert() error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	cond, err := ifparser.Evaluate(p.in, p.ctx, "assert")
	if err != nil {
		return err
	}
	if err := steps.ExpectSelfClose(p.in, "assert"); err != nil {
		return err
	}
	if !cond {
		return errs.New(errs.KindAssertionFailed, "assertion failed")
	}
	return nil
}
