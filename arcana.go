// Package arcana is the streaming text templating engine described by
// SPEC_FULL.md: given a template source (plus a path used to resolve
// relative file references) and an initial variable/function context, it
// emits an expanded text stream to a destination sink. Compilation is
// strictly synchronous (no caching, no concurrency) per §5.
package arcana

import (
	"io"
	"os"

	"github.com/oh-clever/arcana/envctx"
	"github.com/oh-clever/arcana/errs"
	"github.com/oh-clever/arcana/input"
	"github.com/oh-clever/arcana/internal/tracelog"
	"github.com/oh-clever/arcana/output"
	"github.com/oh-clever/arcana/snapshot"
	"github.com/oh-clever/arcana/template"
)

// Options governs non-semantic knobs: it never changes template
// semantics (see §10.3). Its only knob is the debug-trace override; it
// has no resource guard such as a recursion-depth limit.
type Options struct {
	// forceDebugTrace overrides ARCANA_DEBUG_PARSE, forcing on or off the
	// structured trace logging tracelog emits around mode/tag dispatch,
	// sub-parser spawns, and error upgrades.
	forceDebugTrace    bool
	forceDebugTraceSet bool
}

// Option configures a compile call, following the teacher's functional-
// options pattern (runtime/parser/options.go).
type Option func(*Options)

// WithDebugTrace forces Arcana's internal trace logging on or off,
// overriding the ARCANA_DEBUG_PARSE environment variable. The setting is
// process-wide and stays in effect after the compile call returns.
func WithDebugTrace(on bool) Option {
	return func(o *Options) {
		o.forceDebugTrace = on
		o.forceDebugTraceSet = true
	}
}

func resolveOptions(opts []Option) Options {
	var o Options
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// Compile reads src, resolves relative file references (include/extend/
// call/compile/path/dirname/basename) against path's directory, and
// writes the expanded output to dest. ctx seeds the initial variable and
// function bindings; pass envctx.New() for an empty context.
func Compile(src io.Reader, path string, dest io.Writer, ctx *envctx.Context, opts ...Option) error {
	resolved := resolveOptions(opts)
	if resolved.forceDebugTraceSet {
		tracelog.SetEnabled(resolved.forceDebugTrace)
	}

	in, err := input.FromReader(src)
	if err != nil {
		return err
	}
	in.SetPath(path)

	return run(in, dest, ctx)
}

// CompileFile is Compile specialized for a template that already lives on
// disk: path both supplies the source and anchors relative file
// references.
func CompileFile(path string, dest io.Writer, ctx *envctx.Context, opts ...Option) error {
	resolved := resolveOptions(opts)
	if resolved.forceDebugTraceSet {
		tracelog.SetEnabled(resolved.forceDebugTrace)
	}

	in, err := input.FromFile(path)
	if err != nil {
		return err
	}
	return run(in, dest, ctx)
}

// CompileString is Compile specialized for an in-memory template with no
// meaningful backing file; path is still used to anchor relative file
// references (pass "" if the template makes none).
func CompileString(src, path string, dest io.Writer, ctx *envctx.Context, opts ...Option) error {
	resolved := resolveOptions(opts)
	if resolved.forceDebugTraceSet {
		tracelog.SetEnabled(resolved.forceDebugTrace)
	}

	in := input.FromBytes([]byte(src))
	in.SetPath(path)
	return run(in, dest, ctx)
}

// CompileFileToFile is a convenience wrapper opening destPath for
// writing and delegating to CompileFile.
func CompileFileToFile(srcPath, destPath string, ctx *envctx.Context, opts ...Option) error {
	f, err := os.Create(destPath)
	if err != nil {
		return errs.Newf(errs.KindIoFailure, "opening %s for writing: %v", destPath, err)
	}
	defer f.Close()
	return CompileFile(srcPath, f, ctx, opts...)
}

func run(in *input.Input, dest io.Writer, ctx *envctx.Context) error {
	if ctx == nil {
		ctx = envctx.New()
	}
	out := output.New(dest)

	parser := template.New(ctx, in, out)
	if err := parser.Parse(); err != nil {
		return attachSnapshot(err, ctx)
	}
	return out.WriteContentToDestination()
}

// attachSnapshot records the live variable/function stacks at the moment
// a parse fails, the way the teacher's runtime/ir debugger attaches a
// compact binary dump of live state to a failing execution. Encoding
// failures never mask the original parse error; they're swallowed since
// the snapshot is a diagnostic nicety, not load-bearing.
func attachSnapshot(err error, ctx *envctx.Context) error {
	e, ok := err.(*errs.Error)
	if !ok {
		return err
	}
	b, encErr := snapshot.Encode(ctx)
	if encErr != nil {
		return e
	}
	return e.WithSnapshot(b)
}
