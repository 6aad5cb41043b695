// Package snapshot implements a deterministic cbor encoding of a
// Context's variable and function stacks, used as an opt-in diagnostic
// payload attached to errs.Error.Snapshot and by table tests that want to
// assert on a serialized structure instead of hand-walking maps. Grounded
// on the teacher's use of a compact binary encoding for its planner's
// cached execution graphs (runtime/ir), adapted here to a one-shot
// diagnostic encode rather than a persisted cache — Arcana's Non-goals
// explicitly exclude template caching/AST persistence, so this package
// never writes to disk or reuses a snapshot across parses.
package snapshot

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/oh-clever/arcana/envctx"
)

// Variable is the wire form of an envctx.Variable.
type Variable struct {
	OwningPath string `cbor:"owning_path"`
	Value      string `cbor:"value"`
}

// Function is the wire form of an envctx.Function.
type Function struct {
	Params []string `cbor:"params"`
	Body   string   `cbor:"body"`
}

// Context is the wire form of an envctx.Context: both stacks, keyed and
// sorted by name for deterministic output regardless of Go's randomized
// map iteration order.
type Context struct {
	Variables map[string][]Variable `cbor:"variables"`
	Functions map[string][]Function `cbor:"functions"`
}

var encMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Encode serializes ctx's full variable/function stacks to canonical
// CBOR, suitable for attaching to an errs.Error or comparing in a test
// via go-cmp/testify against a golden byte slice.
func Encode(ctx *envctx.Context) ([]byte, error) {
	snap := Context{
		Variables: make(map[string][]Variable),
		Functions: make(map[string][]Function),
	}

	for key, stack := range ctx.VariableStacks() {
		vars := make([]Variable, len(stack))
		for i, v := range stack {
			vars[i] = Variable{OwningPath: v.OwningPath, Value: v.Value}
		}
		snap.Variables[key] = vars
	}
	for key, stack := range ctx.FunctionStacks() {
		fns := make([]Function, len(stack))
		for i, f := range stack {
			fns[i] = Function{Params: append([]string(nil), f.Params...), Body: f.Body}
		}
		snap.Functions[key] = fns
	}

	return encMode.Marshal(snap)
}

// Decode parses previously Encoded CBOR bytes back into a Context
// snapshot, for tests that want to assert on structure rather than raw
// bytes.
func Decode(data []byte) (Context, error) {
	var snap Context
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return Context{}, err
	}
	return snap, nil
}
