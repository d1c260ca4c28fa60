package jsvm

import (
	"context"
	"errors"
	"strings"

	"github.com/dop251/goja"

	"github.com/forgehold/crucible/internal/capability"
	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
	"github.com/forgehold/crucible/internal/runtime"
)

// Backend executes JavaScript plugins in-process.
type Backend struct{}

// New creates the JavaScript backend.
func New() *Backend {
	return &Backend{}
}

// Kind reports the runtime this backend serves.
func (b *Backend) Kind() manifest.Runtime {
	return manifest.RuntimeJavaScript
}

// Prepare compiles the plugin source and verifies it defines a main
// function. The compiled program is immutable and shared across runs.
func (b *Backend) Prepare(m *manifest.Manifest, source string) (runtime.Handle, error) {
	prog, err := goja.Compile(m.Name, source, false)
	if err != nil {
		return nil, execution.NewError(execution.CodeLoad, "javascript compile error: %v", err)
	}

	// Probe run: the top-level must complete and define main.
	vm := goja.New()
	installConsole(vm, nil)
	if _, err := vm.RunProgram(prog); err != nil {
		return nil, execution.NewError(execution.CodeLoad, "plugin top-level failed: %v", err)
	}
	if _, ok := goja.AssertFunction(vm.Get("main")); !ok {
		return nil, execution.NewError(execution.CodeLoad, "entry point main(inputs, context) not defined")
	}

	return &handle{prog: prog}, nil
}

// handle is a compiled JavaScript plugin.
type handle struct {
	prog *goja.Program
}

// Run evaluates the program in a fresh runtime and calls
// main(inputs, context), interrupting the interpreter if the deadline
// expires.
func (h *handle) Run(ctx context.Context, caps *capability.Context, ec execution.Context) (map[string]interface{}, error) {
	vm := goja.New()
	installConsole(vm, caps)

	hold := &denialHolder{}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt("deadline exceeded")
		case <-stop:
		}
	}()

	if _, err := vm.RunProgram(h.prog); err != nil {
		return nil, classify(ctx, hold, err)
	}

	mainFn, ok := goja.AssertFunction(vm.Get("main"))
	if !ok {
		return nil, execution.NewError(execution.CodeLoad, "entry point main(inputs, context) not defined")
	}

	res, err := mainFn(goja.Undefined(),
		vm.ToValue(ec.Inputs),
		buildContextObject(ctx, vm, caps, ec, hold))
	if err != nil {
		return nil, classify(ctx, hold, err)
	}

	return toOutputMap(res), nil
}

// Close is a no-op: the compiled program holds no live resources.
func (h *handle) Close() error {
	return nil
}

// toOutputMap coerces the plugin's return value into the output map
// shape.
func toOutputMap(v goja.Value) map[string]interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return map[string]interface{}{}
	}
	exported := v.Export()
	if m, ok := exported.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"result": exported}
}

// denialHolder remembers the last capability denial thrown into the
// interpreter so an uncaught denial keeps its error code.
type denialHolder struct {
	err *execution.Error
}

// throwErr records a denial (if err is one) and raises it as a
// JavaScript exception. It does not return.
func (d *denialHolder) throwErr(vm *goja.Runtime, err error) {
	var ee *execution.Error
	if errors.As(err, &ee) && ee.Code == execution.CodePermissionDenied {
		d.err = ee
	}
	panic(vm.ToValue(err.Error()))
}

// classify maps an interpreter failure onto the error taxonomy.
func classify(ctx context.Context, hold *denialHolder, err error) error {
	var interrupted *goja.InterruptedError
	if ctx.Err() != nil || errors.As(err, &interrupted) {
		return execution.NewError(execution.CodeTimeout, "execution deadline exceeded")
	}
	if hold.err != nil && strings.Contains(err.Error(), hold.err.Message) {
		return hold.err
	}
	return execution.NewError(execution.CodeBackend, "javascript runtime error: %v", err)
}
