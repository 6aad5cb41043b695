package envctx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_AddAndValue(t *testing.T) {
	ctx := New()
	ctx.AddVariable("name", "/tpl/root.arc", "first")
	ctx.AddVariable("name", "/tpl/root.arc", "second")

	v, ok := ctx.Value("name")
	require.True(t, ok)
	assert.Equal(t, "second", v)

	values, ok := ctx.Values("name")
	require.True(t, ok)
	assert.Equal(t, []string{"first", "second"}, values)
}

func TestContext_PopVariableRemovesEmptyStack(t *testing.T) {
	ctx := New()
	ctx.AddVariable("k", "", "v")
	ctx.PopVariable("k")

	_, ok := ctx.Value("k")
	assert.False(t, ok)
	assert.Equal(t, 0, ctx.StackSize("k"))
}

func TestContext_CloneDoesNotLeak(t *testing.T) {
	ctx := New()
	ctx.AddVariable("k", "", "v1")

	clone := ctx.Clone()
	clone.AddVariable("k", "", "v2")
	clone.AddFunction("f", []string{"x"}, "body")

	v, _ := ctx.Value("k")
	assert.Equal(t, "v1", v, "mutating the clone must not affect the original")

	_, ok := ctx.Function("f")
	assert.False(t, ok)

	if diff := cmp.Diff([]string{"v1"}, mustValues(t, ctx, "k")); diff != "" {
		t.Errorf("unexpected original stack (-want +got):\n%s", diff)
	}
}

func mustValues(t *testing.T, ctx *Context, key string) []string {
	t.Helper()
	v, ok := ctx.Values(key)
	require.True(t, ok)
	return v
}

func TestContext_Path(t *testing.T) {
	ctx := New()
	ctx.AddVariable("rel", "/tpl/sub/page.arc", "partial.arc")
	ctx.AddVariable("abs", "/tpl/sub/page.arc", "/etc/partial.arc")

	p, ok := ctx.Path("rel")
	require.True(t, ok)
	assert.Equal(t, "/tpl/sub/partial.arc", p)

	p, ok = ctx.Path("abs")
	require.True(t, ok)
	assert.Equal(t, "/etc/partial.arc", p)
}

func TestContext_NthValue(t *testing.T) {
	ctx := New()
	for _, v := range []string{"a", "b", "c"} {
		ctx.AddVariable("k", "", v)
	}

	tests := []struct {
		name string
		i    int
		want string
		ok   bool
	}{
		{"first", 0, "a", true},
		{"last", 2, "c", true},
		{"out_of_range_positive", 3, "", false},
		{"wrap_negative_one", -1, "c", true},
		{"wrap_negative_three", -3, "a", true},
		{"wrap_negative_four", -4, "c", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := ctx.NthValue("k", tt.i)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, v)
			}
		})
	}
}

func TestContext_NthValueEmptyStack(t *testing.T) {
	ctx := New()
	_, ok := ctx.NthValue("missing", 0)
	assert.False(t, ok)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
		want  bool
	}{
		{"", true, false},
		{"x", false, false},
		{"0", true, false},
		{"n", true, false},
		{"N", true, false},
		{"false", true, false},
		{"FALSE", true, false},
		{"1", true, true},
		{"y", true, true},
		{"anything", true, true},
	}
	for _, tt := range tests {
		got := Truthy(tt.value, tt.ok)
		assert.Equalf(t, tt.want, got, "Truthy(%q, %v)", tt.value, tt.ok)
	}
}

func TestFunction_StackShadowing(t *testing.T) {
	ctx := New()
	ctx.AddFunction("greet", []string{"name"}, "outer")
	ctx.AddFunction("greet", []string{"name"}, "inner")

	fn, ok := ctx.Function("greet")
	require.True(t, ok)
	assert.Equal(t, "inner", fn.Body)

	ctx.PopFunction("greet")
	fn, ok = ctx.Function("greet")
	require.True(t, ok)
	assert.Equal(t, "outer", fn.Body)
}
