package ifparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oh-clever/arcana/envctx"
	"github.com/oh-clever/arcana/input"
)

func eval(t *testing.T, expr string, seed map[string]string) bool {
	t.Helper()
	ctx := envctx.New()
	for k, v := range seed {
		ctx.AddVariable(k, "", v)
	}
	in := input.FromBytes([]byte(expr + " %}"))
	got, err := Evaluate(in, ctx, "if")
	require.NoError(t, err)
	return got
}

func TestEvaluate_BareTruthiness(t *testing.T) {
	assert.True(t, eval(t, `id`, map[string]string{"id": "1"}))
	assert.False(t, eval(t, `id`, map[string]string{"id": "0"}))
	assert.False(t, eval(t, `missing`, nil))
}

func TestEvaluate_EqualityAndOrdering(t *testing.T) {
	assert.True(t, eval(t, `id == "1"`, map[string]string{"id": "1"}))
	assert.False(t, eval(t, `id != "1"`, map[string]string{"id": "1"}))
	assert.True(t, eval(t, `5 > 3`, nil))
	assert.True(t, eval(t, `"abc" < "abd"`, nil))
}

func TestEvaluate_LogicalOrShortCircuits(t *testing.T) {
	// id==2, id2=5: "id == \"1\" || id2 > \"4\"" -> true via the OR branch.
	assert.True(t, eval(t, `id == "1" || id2 > "4"`, map[string]string{"id": "2", "id2": "5"}))
}

func TestEvaluate_LogicalAnd(t *testing.T) {
	assert.True(t, eval(t, `1 == 1 && 2 == 2`, nil))
	assert.False(t, eval(t, `1 == 1 && 2 == 3`, nil))
}

func TestEvaluate_Parentheses(t *testing.T) {
	assert.True(t, eval(t, `(1 == 2) || (3 == 3)`, nil))
	assert.False(t, eval(t, `(1 == 2) || (3 == 4)`, nil))
}

func TestEvaluate_Negation(t *testing.T) {
	assert.True(t, eval(t, `!(1 == 2)`, nil))
	assert.False(t, eval(t, `!!(1 == 2)`, nil))
}

func TestEvaluate_UnboundComparesNotEqualToAnything(t *testing.T) {
	assert.False(t, eval(t, `missing == "x"`, nil))
	assert.True(t, eval(t, `missing != "x"`, nil))
}

// Ordering against an unbound operand never errors: the unbound side
// sorts before any present value.
func TestEvaluate_OrderingAgainstUnboundNeverErrors(t *testing.T) {
	assert.True(t, eval(t, `missing < "4"`, nil))
	assert.False(t, eval(t, `missing > "4"`, nil))
	assert.True(t, eval(t, `"4" > missing`, nil))
}

// Non-integer numeric-looking operands ("3.5", "1e10") fall back to
// string comparison rather than being parsed as floats.
func TestEvaluate_OrderingFallsBackToStringForNonIntegerOperands(t *testing.T) {
	assert.True(t, eval(t, `"3.5" < "4"`, nil), `lexicographically "3.5" < "4"`)
	assert.True(t, eval(t, `"10" < "9x"`, nil), "string comparison, not numeric: \"10\" < \"9x\" lexicographically")
}

func TestEvaluate_OrderingPrefersIntegerComparisonWhenBothSidesParse(t *testing.T) {
	assert.True(t, eval(t, `"9" < "10"`, nil), "integer comparison: 9 < 10 numerically")
	assert.True(t, eval(t, `"-5" < "3"`, nil))
}

func TestEvaluate_StopsBeforeClosingTagDelimiter(t *testing.T) {
	ctx := envctx.New()
	ctx.AddVariable("id", "", "1")
	in := input.FromBytes([]byte(`id == "1" %}rest`))

	got, err := Evaluate(in, ctx, "if")
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, byte('%'), byte(in.Current()), "cursor must stop right before the closing tag sequence")
}
