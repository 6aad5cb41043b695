// Package envctx implements spec §4.2's Context: two name-keyed stacks,
// one of Variable bindings and one of Function definitions, with
// shadowing lookups that always see the top of the stack. Named envctx
// (not "context") to stay clear of the standard library's context
// package, which Arcana's core never needs — compilation is strictly
// synchronous per spec §5.
package envctx

import (
	"strings"

	"github.com/oh-clever/arcana/internal/pathutil"
)

// Variable is spec §3's (owning_path, value_text) tuple. OwningPath
// anchors relative path resolution for values that are themselves paths.
type Variable struct {
	OwningPath string
	Value      string
}

// Function is spec §3's (parameter_names, body_bytes) tuple. Body is
// captured verbatim (bypass mode) at `{% fn %}` definition time and
// re-parsed per call as a limited input.
type Function struct {
	Params []string
	Body   string
}

// Context holds the variable and function stacks described by spec §3/
// §4.2. The zero value is not usable; construct with New.
type Context struct {
	vars  map[string][]Variable
	funcs map[string][]Function
}

// New returns an empty Context.
func New() *Context {
	return &Context{vars: make(map[string][]Variable), funcs: make(map[string][]Function)}
}

// Clone deep-copies both stacks, for spawning a sealed sub-parser (§2):
// mutations the child makes must not leak back to the parent.
func (c *Context) Clone() *Context {
	nc := New()
	for k, stack := range c.vars {
		cp := make([]Variable, len(stack))
		copy(cp, stack)
		nc.vars[k] = cp
	}
	for k, stack := range c.funcs {
		cp := make([]Function, len(stack))
		copy(cp, stack)
		nc.funcs[k] = cp
	}
	return nc
}

// Value returns the top binding for key, or ("", false) if unbound.
func (c *Context) Value(key string) (string, bool) {
	stack := c.vars[key]
	if len(stack) == 0 {
		return "", false
	}
	return stack[len(stack)-1].Value, true
}

// Values returns the full stack for key, oldest first, or (nil, false) if
// unbound.
func (c *Context) Values(key string) ([]string, bool) {
	stack := c.vars[key]
	if len(stack) == 0 {
		return nil, false
	}
	out := make([]string, len(stack))
	for i, v := range stack {
		out[i] = v.Value
	}
	return out, true
}

// Path resolves the top value for key against its owning file: absolute
// values pass through, relative values are joined to the owning path's
// directory, per spec §4.2.
func (c *Context) Path(key string) (string, bool) {
	stack := c.vars[key]
	if len(stack) == 0 {
		return "", false
	}
	top := stack[len(stack)-1]
	return pathutil.Resolve(top.OwningPath, top.Value), true
}

// AddVariable pushes a new binding for key.
func (c *Context) AddVariable(key, owningPath, value string) {
	c.vars[key] = append(c.vars[key], Variable{OwningPath: owningPath, Value: value})
}

// PopVariable pops the top binding for key, removing the key entirely
// once its stack is empty — the Context never retains empty stacks
// (spec §3 invariant).
func (c *Context) PopVariable(key string) {
	stack := c.vars[key]
	if len(stack) == 0 {
		return
	}
	if len(stack) == 1 {
		delete(c.vars, key)
		return
	}
	c.vars[key] = stack[:len(stack)-1]
}

// RemoveVariable discards the entire stack for key.
func (c *Context) RemoveVariable(key string) {
	delete(c.vars, key)
}

// StackSize returns the number of bindings currently pushed for key.
func (c *Context) StackSize(key string) int {
	return len(c.vars[key])
}

// NthValue returns the element at index i of key's stack. A negative i
// wraps modulo the stack size, counting from the end (the literal "-0"
// case — meaning "last" — is the caller's responsibility to translate to
// i == -1 before calling, since Go's int has no negative zero). A
// non-negative i is used verbatim and is out of range (ok == false) once
// it reaches the stack size. Empty stacks always return ok == false.
func (c *Context) NthValue(key string, i int) (string, bool) {
	stack := c.vars[key]
	n := len(stack)
	if n == 0 {
		return "", false
	}
	idx := i
	if idx < 0 {
		idx = ((idx % n) + n) % n
	} else if idx >= n {
		return "", false
	}
	return stack[idx].Value, true
}

// Function returns the top definition for name, or (zero, false) if
// undefined.
func (c *Context) Function(name string) (Function, bool) {
	stack := c.funcs[name]
	if len(stack) == 0 {
		return Function{}, false
	}
	return stack[len(stack)-1], true
}

// AddFunction pushes a new definition for name.
func (c *Context) AddFunction(name string, params []string, body string) {
	c.funcs[name] = append(c.funcs[name], Function{Params: params, Body: body})
}

// PopFunction pops the top definition for name.
func (c *Context) PopFunction(name string) {
	stack := c.funcs[name]
	if len(stack) == 0 {
		return
	}
	if len(stack) == 1 {
		delete(c.funcs, name)
		return
	}
	c.funcs[name] = stack[:len(stack)-1]
}

// Truthy implements spec §4.2's truthiness rule: true unless the value is
// absent, empty, "0", "n", or "false" (case-insensitive).
func Truthy(value string, ok bool) bool {
	if !ok {
		return false
	}
	switch strings.ToLower(value) {
	case "", "0", "n", "false":
		return false
	default:
		return true
	}
}

// VariableStacks returns a shallow view of the variable stacks for
// diagnostic snapshotting (see the snapshot package). Callers must treat
// the result as read-only.
func (c *Context) VariableStacks() map[string][]Variable {
	return c.vars
}

// FunctionStacks returns a shallow view of the function stacks for
// diagnostic snapshotting. Callers must treat the result as read-only.
func (c *Context) FunctionStacks() map[string][]Function {
	return c.funcs
}
