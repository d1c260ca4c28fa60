package luavm

import (
	"context"
	"errors"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/forgehold/crucible/internal/capability"
	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
	"github.com/forgehold/crucible/internal/runtime"
)

// Backend executes Lua plugins in-process.
type Backend struct{}

// New creates the Lua backend.
func New() *Backend {
	return &Backend{}
}

// Kind reports the runtime this backend serves.
func (b *Backend) Kind() manifest.Runtime {
	return manifest.RuntimeLua
}

// Prepare compiles the plugin source and verifies it defines a main
// function. The compiled chunk is shared across runs; each run
// instantiates it in a fresh state.
func (b *Backend) Prepare(m *manifest.Manifest, source string) (runtime.Handle, error) {
	chunk, err := parse.Parse(strings.NewReader(source), m.Name)
	if err != nil {
		return nil, execution.NewError(execution.CodeLoad, "lua parse error: %v", err)
	}
	proto, err := lua.Compile(chunk, m.Name)
	if err != nil {
		return nil, execution.NewError(execution.CodeLoad, "lua compile error: %v", err)
	}

	// Probe run: top-level code must complete and leave a main
	// function behind. A plugin without an entry point fails here, at
	// load time, not mid-execution.
	L := newState()
	defer L.Close()
	installConsole(L, nil)
	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, 0, nil); err != nil {
		return nil, execution.NewError(execution.CodeLoad, "plugin top-level failed: %v", err)
	}
	if _, ok := L.GetGlobal("main").(*lua.LFunction); !ok {
		return nil, execution.NewError(execution.CodeLoad, "entry point main(inputs, context) not defined")
	}

	return &handle{proto: proto}, nil
}

// handle is a compiled Lua plugin. The proto is immutable; all mutable
// interpreter state is created per run.
type handle struct {
	proto *lua.FunctionProto
}

// Run executes main(inputs, context) in a fresh sandboxed state bound
// to the execution deadline.
func (h *handle) Run(ctx context.Context, caps *capability.Context, ec execution.Context) (map[string]interface{}, error) {
	L := newState()
	defer L.Close()
	L.SetContext(ctx)
	installConsole(L, caps)

	hold := &denialHolder{}

	L.Push(L.NewFunctionFromProto(h.proto))
	if err := L.PCall(0, 0, nil); err != nil {
		return nil, classify(ctx, hold, err)
	}

	mainFn, ok := L.GetGlobal("main").(*lua.LFunction)
	if !ok {
		return nil, execution.NewError(execution.CodeLoad, "entry point main(inputs, context) not defined")
	}

	L.Push(mainFn)
	L.Push(toLua(L, ec.Inputs))
	L.Push(buildContextTable(ctx, L, caps, ec, hold))
	if err := L.PCall(2, 1, nil); err != nil {
		return nil, classify(ctx, hold, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return toOutputMap(ret), nil
}

// Close is a no-op: the compiled chunk holds no live resources.
func (h *handle) Close() error {
	return nil
}

// denialHolder remembers the last capability denial raised into Lua, so
// an uncaught denial surfaces with its own error code instead of being
// flattened into a generic interpreter error.
type denialHolder struct {
	err *execution.Error
}

// raise records a denial (if err is one) and raises it as a Lua error.
func (d *denialHolder) raise(L *lua.LState, err error) int {
	var ee *execution.Error
	if errors.As(err, &ee) && ee.Code == execution.CodePermissionDenied {
		d.err = ee
	}
	L.RaiseError("%s", err.Error())
	return 0
}

// classify maps an interpreter failure onto the error taxonomy.
func classify(ctx context.Context, hold *denialHolder, err error) error {
	if ctx.Err() != nil {
		return execution.NewError(execution.CodeTimeout, "execution deadline exceeded")
	}
	if hold.err != nil && strings.Contains(err.Error(), hold.err.Message) {
		return hold.err
	}
	return execution.NewError(execution.CodeBackend, "lua runtime error: %v", err)
}
