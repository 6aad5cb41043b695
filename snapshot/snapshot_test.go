package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oh-clever/arcana/envctx"
)

func TestEncodeDecode_RoundTripsVariablesAndFunctions(t *testing.T) {
	ctx := envctx.New()
	ctx.AddVariable("id", "tmpl.arc", "1")
	ctx.AddVariable("id", "tmpl.arc", "2")
	ctx.AddFunction("greet", []string{"name"}, "hello {{ name }}")

	data, err := Encode(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	got, err := Decode(data)
	require.NoError(t, err)

	require.Len(t, got.Variables["id"], 2)
	assert.Equal(t, "1", got.Variables["id"][0].Value)
	assert.Equal(t, "2", got.Variables["id"][1].Value)
	assert.Equal(t, "tmpl.arc", got.Variables["id"][0].OwningPath)

	require.Len(t, got.Functions["greet"], 1)
	assert.Equal(t, []string{"name"}, got.Functions["greet"][0].Params)
	assert.Equal(t, "hello {{ name }}", got.Functions["greet"][0].Body)
}

func TestEncode_IsDeterministicAcrossCalls(t *testing.T) {
	ctx := envctx.New()
	ctx.AddVariable("z", "", "last")
	ctx.AddVariable("a", "", "first")

	first, err := Encode(ctx)
	require.NoError(t, err)
	second, err := Encode(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second, "canonical CBOR encoding must be stable across repeated calls")
}

func TestEncode_EmptyContext(t *testing.T) {
	ctx := envctx.New()
	data, err := Encode(ctx)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, got.Variables)
	assert.Empty(t, got.Functions)
}
