package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oh-clever/arcana/envctx"
	"github.com/oh-clever/arcana/errs"
	"github.com/oh-clever/arcana/input"
	"github.com/oh-clever/arcana/output"
)

func run(t *testing.T, src string, ctx *envctx.Context, path string) (string, error) {
	t.Helper()
	if ctx == nil {
		ctx = envctx.New()
	}
	in := input.FromBytes([]byte(src))
	in.SetPath(path)
	var dest strings.Builder
	out := output.New(&dest)

	p := New(ctx, in, out)
	err := p.Parse()
	if err != nil {
		return "", err
	}
	if werr := out.WriteContentToDestination(); werr != nil {
		return "", werr
	}
	return dest.String(), nil
}

func TestParser_UnknownEndTagInsideBlockIsUnknownEndTag(t *testing.T) {
	_, err := run(t, `{% if 1 == 1 %}x{% /fi %}`, nil, "")
	require.Error(t, err)
	arcErr, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnknownEndTag, arcErr.Kind)
}

func TestParser_MismatchedEndTagIsUnexpectedEndTag(t *testing.T) {
	_, err := run(t, `{% if 1 == 1 %}x{% /foreach %}`, nil, "")
	require.Error(t, err)
	arcErr, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnexpectedEndTag, arcErr.Kind)
}

func TestParser_UnterminatedBlockIsUnexpectedEof(t *testing.T) {
	_, err := run(t, `{% if 1 == 1 %}never closed`, nil, "")
	require.Error(t, err)
	arcErr, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnexpectedEof, arcErr.Kind)
}

func TestParser_EscapesPassThroughLiterally(t *testing.T) {
	out, err := run(t, `\{\{ not an expression \}\}`, nil, "")
	require.NoError(t, err)
	assert.Equal(t, `{{ not an expression }}`, out)
}

func TestParser_FunctionDefinitionAndCall(t *testing.T) {
	out, err := run(t, `{% fn greet(name) %}hello {{ name }}{% /fn %}{{ greet("world") }}`, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestParser_FunctionCallLeavesMissingArgsUnbound(t *testing.T) {
	out, err := run(t, `{% fn greet(name) %}hello {{ name }}{% /fn %}{{ greet() }}`, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "hello ", out)
}

func TestParser_IncludeCopiesFileContentsWithoutTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "partial.txt")
	require.NoError(t, os.WriteFile(target, []byte("partial body\n"), 0o644))

	tmplPath := filepath.Join(dir, "main.arc")
	out, err := run(t, `before-{% include "partial.txt" /%}-after`, nil, tmplPath)
	require.NoError(t, err)
	assert.Equal(t, "before-partial body-after", out)
}

func TestParser_CallSharesMutationsBack(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "setter.arc")
	require.NoError(t, os.WriteFile(target, []byte(`{% set flag %}1{% /set %}`), 0o644))

	tmplPath := filepath.Join(dir, "main.arc")
	ctx := envctx.New()
	in := input.FromBytes([]byte(`{% call "setter.arc" /%}{{ flag }}`))
	in.SetPath(tmplPath)
	var dest strings.Builder
	out := output.New(&dest)
	require.NoError(t, New(ctx, in, out).Parse())
	require.NoError(t, out.WriteContentToDestination())
	assert.Equal(t, "1", dest.String())
	assert.Equal(t, 1, ctx.StackSize("flag"))
}

func TestParser_CompileDoesNotLeakMutationsBack(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "setter.arc")
	require.NoError(t, os.WriteFile(target, []byte(`{% set flag %}1{% /set %}`), 0o644))

	tmplPath := filepath.Join(dir, "main.arc")
	ctx := envctx.New()
	in := input.FromBytes([]byte(`{% compile "setter.arc" /%}`))
	in.SetPath(tmplPath)
	var dest strings.Builder
	out := output.New(&dest)
	require.NoError(t, New(ctx, in, out).Parse())
	assert.Equal(t, 0, ctx.StackSize("flag"), "compile is sealed: mutations must not leak back")
}

func TestParser_ExtendWrapsContentIntoParentTemplate(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.arc")
	require.NoError(t, os.WriteFile(base, []byte(`[{{ CONTENT }}]`), 0o644))

	tmplPath := filepath.Join(dir, "child.arc")
	out, err := run(t, `{% extend "base.arc" /%}middle`, nil, tmplPath)
	require.NoError(t, err)
	assert.Equal(t, "[middle]", out)
}

func TestParser_PathTagsResolveAgainstTemplateDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	target := filepath.Join(sub, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	tmplPath := filepath.Join(dir, "main.arc")
	out, err := run(t, `{% basename "sub/file.txt" /%}`, nil, tmplPath)
	require.NoError(t, err)
	assert.Equal(t, "file.txt", out)

	out, err = run(t, `{% dirname "sub/file.txt" /%}`, nil, tmplPath)
	require.NoError(t, err)
	assert.Equal(t, "sub", filepath.Base(out))
}

func TestParser_PathTagMissingFileIsBadPath(t *testing.T) {
	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "main.arc")
	_, err := run(t, `{% path "does/not/exist.txt" /%}`, nil, tmplPath)
	require.Error(t, err)
	arcErr, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.KindBadPath, arcErr.Kind)
}

func TestParser_CountAndLength(t *testing.T) {
	ctx := envctx.New()
	ctx.AddVariable("items", "", "a")
	ctx.AddVariable("items", "", "b")
	ctx.AddVariable("items", "", "c")

	out, err := run(t, `{% count items /%}`, ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "3", out)

	out, err = run(t, `{% length "héllo" /%}`, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "6", out, "length counts UTF-8 bytes, not runes")
}

func TestParser_CommentStripping(t *testing.T) {
	out, err := run(t, `a{# dropped #}b`, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
}
