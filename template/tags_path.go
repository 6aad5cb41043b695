package template

import (
	"os"
	"path/filepath"

	"github.com/oh-clever/arcana/errs"
	"github.com/oh-clever/arcana/input"
	"github.com/oh-clever/arcana/steps"
)

// resolvePathArgs implements the shared `value [in base]` grammar of
// path/dirname/basename: value is any parse_value (string, number, or
// variable), base defaults to the current template's directory when no
// `in base` clause is given. The joined path is canonicalised (resolved
// to an absolute, cleaned form) and must exist — a missing file is
// surfaced as KindBadPath, distinct from a surrounding syntax error (see
// SPEC_FULL.md §12's resolution of this open question).
func (p *Parser) resolvePathArgs(tag string) (string, error) {
	if err := steps.BypassWhitespace(p.in); err != nil {
		return "", err
	}
	value, ok, err := steps.ParseValue(p.in, p.ctx, tag)
	if err != nil {
		return "", err
	}
	if !ok {
		value = ""
	}

	base := filepath.Dir(p.in.Path())
	if err := steps.BypassWhitespace(p.in); err != nil {
		return "", err
	}
	if peekIdentIs(p.in, "in") {
		if err := expectKeyword(p, tag, "in"); err != nil {
			return "", err
		}
		if err := steps.BypassWhitespace(p.in); err != nil {
			return "", err
		}
		b, bok, err := steps.ParseValueAsPath(p.in, p.ctx, tag)
		if err != nil {
			return "", err
		}
		if !bok {
			return "", errs.Newf(errs.KindBadPath, "%s: base variable is unbound", tag)
		}
		base = b
	}

	if err := steps.ExpectSelfClose(p.in, tag); err != nil {
		return "", err
	}

	joined := value
	if value != "" && !filepath.IsAbs(value) {
		joined = filepath.Join(base, value)
	}
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", errs.Newf(errs.KindBadPath, "%s: %v", tag, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", errs.Newf(errs.KindBadPath, "%s: %v", tag, err)
	}
	return filepath.Clean(abs), nil
}

// peekIdentIs reports, without permanently consuming anything, whether
// the identifier at Current matches kw exactly (used to decide whether
// an optional `in base` clause is present).
func peekIdentIs(in *input.Input, kw string) bool {
	mark := in.Mark()
	defer in.Reset(mark)
	name, err := steps.ParseVariableName(in, "lookahead")
	return err == nil && name == kw
}

// parsePath implements self-closing `{% path value [in base] /%}`.
func (p *Parser) parsePath() error {
	resolved, err := p.resolvePathArgs("path")
	if err != nil {
		return err
	}
	p.out.WriteStr(resolved)
	p.out.FlushBufferToContent()
	return nil
}

// parseDirname implements self-closing `{% dirname value [in base] /%}`.
func (p *Parser) parseDirname() error {
	resolved, err := p.resolvePathArgs("dirname")
	if err != nil {
		return err
	}
	p.out.WriteStr(filepath.Dir(resolved))
	p.out.FlushBufferToContent()
	return nil
}

// parseBasename implements self-closing `{% basename value [in base]
// /%}`.
func (p *Parser) parseBasename() error {
	resolved, err := p.resolvePathArgs("basename")
	if err != nil {
		return err
	}
	p.out.WriteStr(filepath.Base(resolved))
	p.out.FlushBufferToContent()
	return nil
}
