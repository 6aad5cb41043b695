package template

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/oh-clever/arcana/errs"
	"github.com/oh-clever/arcana/steps"
)

// loopModifiers is the optional tail shared by all four loop forms:
// `[from n] [to n] [as loopvar] [reversed]`, parsed in any order since
// the spec lists them as independent optional clauses.
type loopModifiers struct {
	from, to       *int
	hasFrom, hasTo bool
	asVar          string
	reversed       bool
}

func (p *Parser) parseLoopModifiers(tag string) (loopModifiers, error) {
	var m loopModifiers
	for {
		if err := steps.BypassWhitespace(p.in); err != nil {
			return m, err
		}
		if p.in.IsEnd() || p.in.Current() == '%' {
			return m, nil
		}
		kw, err := steps.ParseVariableName(p.in, tag)
		if err != nil {
			return m, err
		}
		if err := steps.BypassWhitespace(p.in); err != nil {
			return m, err
		}
		switch kw {
		case "from":
			n, err := steps.ParseValueAsNumber(p.in, p.ctx, tag)
			if err != nil {
				return m, err
			}
			v := int(n)
			m.from, m.hasFrom = &v, true
		case "to":
			n, err := steps.ParseValueAsNumber(p.in, p.ctx, tag)
			if err != nil {
				return m, err
			}
			v := int(n)
			m.to, m.hasTo = &v, true
		case "as":
			name, err := steps.ParseVariableName(p.in, tag)
			if err != nil {
				return m, err
			}
			m.asVar = name
		case "reversed":
			m.reversed = true
		default:
			return m, errs.Newf(errs.KindUnexpectedCharacter, "%s: unexpected clause %q", tag, kw)
		}
	}
}

func expectKeyword(p *Parser, tag, kw string) error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	got, err := steps.ParseVariableName(p.in, tag)
	if err != nil {
		return err
	}
	if got != kw {
		return errs.Newf(errs.KindUnexpectedCharacter, "%s: expected %q, got %q", tag, kw, got)
	}
	return nil
}

// sliceAndOrder applies spec §4.7's "numeric slicing": from/to default to
// 0 and len(items); filtering selects [from, to); reversed flips the
// order after slicing.
func sliceAndOrder(items []string, m loopModifiers) []string {
	from, to := 0, len(items)
	if m.hasFrom {
		from = *m.from
	}
	if m.hasTo {
		to = *m.to
	}
	if from < 0 {
		from = 0
	}
	if to > len(items) {
		to = len(items)
	}
	if from > to {
		from = to
	}
	out := append([]string(nil), items[from:to]...)
	if m.reversed {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// runLoopBody renders body once per item in items (binding name, and the
// loopvar.* family if m.asVar is set), or elseBody once if items is empty
// and hitElse. Context mutations within the body are shared with the
// caller, matching parseIf's re-parse semantics.
func (p *Parser) runLoopBody(name string, items []string, m loopModifiers, body, elseBody string, hitElse bool) error {
	if len(items) == 0 {
		if !hitElse {
			return nil
		}
		p.out.FlushBufferToContent()
		child := spawnLimited(elseBody, p.in.Path(), p.ctx, p.out)
		return child.Parse()
	}

	n := len(items)
	for i, v := range items {
		p.ctx.AddVariable(name, p.in.Path(), v)
		if m.asVar != "" {
			p.ctx.AddVariable(m.asVar+".index", p.in.Path(), strconv.Itoa(i))
			p.ctx.AddVariable(m.asVar+".size", p.in.Path(), strconv.Itoa(n))
			p.ctx.AddVariable(m.asVar+".isfirst", p.in.Path(), boolDigit(i == 0))
			p.ctx.AddVariable(m.asVar+".islast", p.in.Path(), boolDigit(i == n-1))
		}

		p.out.FlushBufferToContent()
		child := spawnLimited(body, p.in.Path(), p.ctx, p.out)
		err := child.Parse()

		if m.asVar != "" {
			p.ctx.PopVariable(m.asVar + ".islast")
			p.ctx.PopVariable(m.asVar + ".isfirst")
			p.ctx.PopVariable(m.asVar + ".size")
			p.ctx.PopVariable(m.asVar + ".index")
		}
		p.ctx.PopVariable(name)

		if err != nil {
			return err
		}
	}
	return nil
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// parseForeach implements `{% foreach name in collection [from n] [to n]
// [as loopvar] [reversed] %} ... [{% else %} ...] {% /foreach %}`.
func (p *Parser) parseForeach() error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	name, err := steps.ParseVariableName(p.in, "foreach")
	if err != nil {
		return err
	}
	if err := expectKeyword(p, "foreach", "in"); err != nil {
		return err
	}
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	collection, err := steps.ParseVariableName(p.in, "foreach")
	if err != nil {
		return err
	}
	m, err := p.parseLoopModifiers("foreach")
	if err != nil {
		return err
	}
	if err := steps.ExpectEndOfTag(p.in, "foreach"); err != nil {
		return err
	}

	body, elseBody, hitElse, err := captureBlock(p.in, "foreach", true)
	if err != nil {
		return err
	}

	items, _ := p.ctx.Values(collection)
	items = sliceAndOrder(items, m)
	return p.runLoopBody(name, items, m, body, elseBody, hitElse)
}

// parseFordir implements `{% fordir name in path [from n] [to n] [as
// loopvar] [reversed] %} ... {% /fordir %}`, enumerating child
// directories of path sorted by name.
func (p *Parser) parseFordir() error {
	return p.parseDirLoop("fordir", func(e os.DirEntry) bool { return e.IsDir() })
}

// parseForfile implements `{% forfile name in path ... %}`, enumerating
// child files of path sorted by name.
func (p *Parser) parseForfile() error {
	return p.parseDirLoop("forfile", func(e os.DirEntry) bool { return !e.IsDir() })
}

func (p *Parser) parseDirLoop(tag string, keep func(os.DirEntry) bool) error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	name, err := steps.ParseVariableName(p.in, tag)
	if err != nil {
		return err
	}
	if err := expectKeyword(p, tag, "in"); err != nil {
		return err
	}
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	dir, ok, err := steps.ParseValueAsPath(p.in, p.ctx, tag)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Newf(errs.KindBadPath, "%s: path variable is unbound", tag)
	}
	m, err := p.parseLoopModifiers(tag)
	if err != nil {
		return err
	}
	if err := steps.ExpectEndOfTag(p.in, tag); err != nil {
		return err
	}

	body, elseBody, hitElse, err := captureBlock(p.in, tag, true)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errs.Newf(errs.KindBadPath, "%s: %v", tag, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(names)

	names = sliceAndOrder(names, m)
	return p.runLoopBody(name, names, m, body, elseBody, hitElse)
}

// parseForsplit implements `{% forsplit name in string on delim ... %}`,
// splitting string by the literal sequence delim; an empty or unbound
// delim splits into individual Unicode scalars.
func (p *Parser) parseForsplit() error {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	name, err := steps.ParseVariableName(p.in, "forsplit")
	if err != nil {
		return err
	}
	if err := expectKeyword(p, "forsplit", "in"); err != nil {
		return err
	}
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	text, textOK, err := steps.ParseValue(p.in, p.ctx, "forsplit")
	if err != nil {
		return err
	}
	if !textOK {
		text = ""
	}
	if err := expectKeyword(p, "forsplit", "on"); err != nil {
		return err
	}
	if err := steps.BypassWhitespace(p.in); err != nil {
		return err
	}
	delim, delimOK, err := steps.ParseValue(p.in, p.ctx, "forsplit")
	if err != nil {
		return err
	}
	m, err := p.parseLoopModifiers("forsplit")
	if err != nil {
		return err
	}
	if err := steps.ExpectEndOfTag(p.in, "forsplit"); err != nil {
		return err
	}

	body, elseBody, hitElse, err := captureBlock(p.in, "forsplit", true)
	if err != nil {
		return err
	}

	var parts []string
	if !delimOK || delim == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, delim)
	}

	parts = sliceAndOrder(parts, m)
	return p.runLoopBody(name, parts, m, body, elseBody, hitElse)
}
