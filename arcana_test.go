package arcana

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oh-clever/arcana/envctx"
	"github.com/oh-clever/arcana/errs"
	"github.com/oh-clever/arcana/snapshot"
)

func compile(t *testing.T, tmpl string, ctx *envctx.Context) (string, error) {
	t.Helper()
	if ctx == nil {
		ctx = envctx.New()
	}
	var dest strings.Builder
	err := CompileString(tmpl, "", &dest, ctx)
	return dest.String(), err
}

func TestCompile_PassthroughWithNoTags(t *testing.T) {
	src := "plain text, no tags here.\nsecond line."
	out, err := compile(t, src, nil)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestCompile_CommentsAreStripped(t *testing.T) {
	out, err := compile(t, "before{# this is dropped #}after", nil)
	require.NoError(t, err)
	assert.Equal(t, "beforeafter", out)
}

func TestCompile_SetBindsExactlyWhatTheBodyParsesTo(t *testing.T) {
	ctx := envctx.New()
	_, err := compile(t, `{% set greeting %}hello {{ name }}{% /set %}`, ctx)
	require.NoError(t, err)

	ctx2 := envctx.New()
	ctx2.AddVariable("name", "", "world")
	out, err := compile(t, `{% set greeting %}hello {{ name }}{% /set %}{{ greeting }}`, ctx2)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	assert.Equal(t, 1, ctx2.StackSize("greeting"))
}

func TestCompile_LoopPreservesUnrelatedStackSizes(t *testing.T) {
	ctx := envctx.New()
	ctx.AddVariable("items", "", "a")
	ctx.AddVariable("items", "", "b")
	ctx.AddVariable("unrelated", "", "kept")

	_, err := compile(t, `{% foreach it in items %}{{ it }}{% /foreach %}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ctx.StackSize("unrelated"))
	assert.Equal(t, 0, ctx.StackSize("it"), "loop variable must be popped after the loop")
}

func TestCompile_ReversedPreservesIndexMonotonicity(t *testing.T) {
	ctx := envctx.New()
	for _, v := range []string{"a", "b", "c"} {
		ctx.AddVariable("items", "", v)
	}
	out, err := compile(t, `{% foreach it in items as loop reversed %}{{ loop.index }}:{{ it }} {% /foreach %}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "0:c 1:b 2:a ", out)
}

// Scenario 1: an `add` tag accumulating into a `set` binding.
func TestCompile_Scenario_SetAddAccumulator(t *testing.T) {
	ctx := envctx.New()
	ctx.AddVariable("x", "", "5")
	out, err := compile(t, `{% set i %}{% add x %}0{% /add %}{% /set %}{{ i }}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "5", out)
}

// Scenario 2: an `if`/`else` with a short-circuiting `||`.
func TestCompile_Scenario_IfElseShortCircuit(t *testing.T) {
	ctx := envctx.New()
	ctx.AddVariable("id", "", "2")
	ctx.AddVariable("id2", "", "5")
	out, err := compile(t, `{% if id == "1" || id2 > "4" %}True{% else %}False{% /if %}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "True", out)
}

// Scenario 3: a `foreach` with `loop.isfirst`/`loop.islast` driving
// comma-separation and a trailing period.
func TestCompile_Scenario_ForeachFirstLast(t *testing.T) {
	ctx := envctx.New()
	ctx.AddVariable("users", "", "test.user")
	ctx.AddVariable("users", "", "second.user")

	tmpl := `{% foreach u in users as loop %}{% if loop.isfirst %}{% else %}, {% /if %}{{ u }}{% if loop.islast %}.{% /if %}{% else %}No users.{% /foreach %}`
	out, err := compile(t, tmpl, ctx)
	require.NoError(t, err)
	assert.Equal(t, "test.user, second.user.", out)
}

// Scenario 3, empty-collection branch.
func TestCompile_Scenario_ForeachElseOnEmptyCollection(t *testing.T) {
	ctx := envctx.New()
	tmpl := `{% foreach u in users as loop %}{% if loop.isfirst %}{% else %}, {% /if %}{{ u }}{% if loop.islast %}.{% /if %}{% else %}No users.{% /foreach %}`
	out, err := compile(t, tmpl, ctx)
	require.NoError(t, err)
	assert.Equal(t, "No users.", out)
}

// Scenario 4: `assert` passes and fails.
func TestCompile_Scenario_AssertPassAndFail(t *testing.T) {
	ctxPass := envctx.New()
	ctxPass.AddVariable("id", "", "1")
	out, err := compile(t, `{% assert id == "1" /%}True`, ctxPass)
	require.NoError(t, err)
	assert.Equal(t, "True", out)

	ctxFail := envctx.New()
	ctxFail.AddVariable("id", "", "2")
	_, err = compile(t, `{% assert id == "1" /%}True`, ctxFail)
	require.Error(t, err)
	var arcErr *errs.Error
	require.True(t, errors.As(err, &arcErr))
	assert.True(t, errors.Is(arcErr, errs.New(errs.KindAssertionFailed, "")))
}

// Scenario 5: `pow`'s body is the base, the tag header is the exponent.
func TestCompile_Scenario_Pow(t *testing.T) {
	out, err := compile(t, `{% pow 2 %}5{% /pow %}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "25", out)

	out, err = compile(t, `{% pow 3 %}3{% /pow %}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "27", out)
}

func TestCompile_Pow_OverflowIsAnError(t *testing.T) {
	_, err := compile(t, `{% pow 4294967295 %}4294967295{% /pow %}`, nil)
	require.Error(t, err)
	var arcErr *errs.Error
	require.True(t, errors.As(err, &arcErr))
	assert.Equal(t, errs.KindOverflowInPow, arcErr.Kind)
}

// Scenario 6: `forsplit` with an empty delimiter splits into scalars.
func TestCompile_Scenario_ForsplitOnEmptyDelimiter(t *testing.T) {
	out, err := compile(t, `{% forsplit c in "012345" on "" %}{{ c }}, {% /forsplit %}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "0, 1, 2, 3, 4, 5, ", out)
}

func TestCompile_Nth_WrapsNegativeIndicesAndHandlesNegativeZero(t *testing.T) {
	ctx := envctx.New()
	for _, v := range []string{"a", "b", "c"} {
		ctx.AddVariable("items", "", v)
	}
	out, err := compile(t, `{% nth items %}-1{% /nth %}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", out)

	out, err = compile(t, `{% nth items %}-0{% /nth %}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", out)

	out, err = compile(t, `{% nth items %}-4{% /nth %}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", out, "wrap is modulo the stack size")
}

func TestCompile_UnknownTagSuggestsAClosestMatch(t *testing.T) {
	_, err := compile(t, `{% foeach x in items %}{{ x }}{% /foeach %}`, nil)
	require.Error(t, err)
	var arcErr *errs.Error
	require.True(t, errors.As(err, &arcErr))
	assert.Equal(t, errs.KindUnknownTag, arcErr.Kind)
	assert.Contains(t, arcErr.Suggestions, "foreach")
}

// A failing compile attaches a decodable snapshot of the live context at
// the point of failure, not just a message.
func TestCompile_FailureAttachesContextSnapshot(t *testing.T) {
	ctx := envctx.New()
	ctx.AddVariable("user", "", "ada")

	_, err := compile(t, `{% foeach x in items %}{{ x }}{% /foeach %}`, ctx)
	require.Error(t, err)

	var arcErr *errs.Error
	require.True(t, errors.As(err, &arcErr))
	require.NotEmpty(t, arcErr.Snapshot)

	snap, decErr := snapshot.Decode(arcErr.Snapshot)
	require.NoError(t, decErr)
	require.Contains(t, snap.Variables, "user")
	assert.Equal(t, "ada", snap.Variables["user"][0].Value)
}
