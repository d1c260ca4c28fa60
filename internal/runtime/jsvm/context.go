package jsvm

import (
	"context"

	"github.com/dop251/goja"

	"github.com/forgehold/crucible/internal/aiservice"
	"github.com/forgehold/crucible/internal/capability"
	"github.com/forgehold/crucible/internal/execution"
)

// installConsole injects console.log/warn/error routed to the plugin
// logger. With a nil context (load probe) output is discarded.
func installConsole(vm *goja.Runtime, caps *capability.Context) {
	console := vm.NewObject()
	emit := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			if caps == nil {
				return goja.Undefined()
			}
			parts := make([]interface{}, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.Export()
			}
			switch level {
			case "warn":
				caps.Logger.Warn(parts...)
			case "error":
				caps.Logger.Error(parts...)
			default:
				caps.Logger.Info(parts...)
			}
			return goja.Undefined()
		}
	}
	_ = console.Set("log", emit("info"))
	_ = console.Set("warn", emit("warn"))
	_ = console.Set("error", emit("error"))
	_ = vm.Set("console", console)
}

// buildContextObject assembles the context argument passed to main.
// Capability handles appear only when the grant covers them.
func buildContextObject(ctx context.Context, vm *goja.Runtime, caps *capability.Context, ec execution.Context, hold *denialHolder) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("executionId", ec.ExecutionID)
	_ = obj.Set("pluginId", ec.PluginID)
	_ = obj.Set("installationId", ec.InstallationID)
	_ = obj.Set("callerId", ec.CallerID)
	if ec.ProjectID != "" {
		_ = obj.Set("projectId", ec.ProjectID)
	}
	if ec.SessionID != "" {
		_ = obj.Set("sessionId", ec.SessionID)
	}

	grant := ec.Grant
	if len(grant.Filesystem.Read) > 0 || grant.AllowsFilesystemWrite() ||
		len(grant.Filesystem.Execute) > 0 {
		_ = obj.Set("workspace", workspaceObject(vm, caps, hold))
	}
	if grant.AllowsNetwork() {
		_ = obj.Set("http", httpObject(ctx, vm, caps, hold))
	}
	if len(grant.AI) > 0 {
		_ = obj.Set("ai", aiObject(ctx, vm, caps, hold))
	}
	return obj
}

func workspaceObject(vm *goja.Runtime, caps *capability.Context, hold *denialHolder) *goja.Object {
	obj := vm.NewObject()

	_ = obj.Set("read", func(call goja.FunctionCall) goja.Value {
		data, err := caps.Workspace.Read(call.Argument(0).String())
		if err != nil {
			hold.throwErr(vm, err)
		}
		return vm.ToValue(string(data))
	})

	_ = obj.Set("write", func(call goja.FunctionCall) goja.Value {
		if err := caps.Workspace.Write(call.Argument(0).String(), []byte(call.Argument(1).String())); err != nil {
			hold.throwErr(vm, err)
		}
		return goja.Undefined()
	})

	_ = obj.Set("delete", func(call goja.FunctionCall) goja.Value {
		if err := caps.Workspace.Delete(call.Argument(0).String()); err != nil {
			hold.throwErr(vm, err)
		}
		return goja.Undefined()
	})

	_ = obj.Set("list", func(call goja.FunctionCall) goja.Value {
		names, err := caps.Workspace.List(call.Argument(0).String())
		if err != nil {
			hold.throwErr(vm, err)
		}
		return vm.ToValue(names)
	})

	return obj
}

func httpObject(ctx context.Context, vm *goja.Runtime, caps *capability.Context, hold *denialHolder) *goja.Object {
	obj := vm.NewObject()

	toResp := func(resp *capability.Response) goja.Value {
		out := vm.NewObject()
		_ = out.Set("status", resp.StatusCode)
		_ = out.Set("body", string(resp.Body))
		return out
	}

	_ = obj.Set("get", func(call goja.FunctionCall) goja.Value {
		resp, err := caps.HTTP.Get(ctx, call.Argument(0).String())
		if err != nil {
			hold.throwErr(vm, err)
		}
		return toResp(resp)
	})

	_ = obj.Set("post", func(call goja.FunctionCall) goja.Value {
		url := call.Argument(0).String()
		contentType := "application/json"
		if ct := call.Argument(1); !goja.IsUndefined(ct) {
			contentType = ct.String()
		}
		var body []byte
		if b := call.Argument(2); !goja.IsUndefined(b) {
			body = []byte(b.String())
		}
		resp, err := caps.HTTP.Post(ctx, url, contentType, body)
		if err != nil {
			hold.throwErr(vm, err)
		}
		return toResp(resp)
	})

	return obj
}

func aiObject(ctx context.Context, vm *goja.Runtime, caps *capability.Context, hold *denialHolder) *goja.Object {
	obj := vm.NewObject()

	_ = obj.Set("generate", func(call goja.FunctionCall) goja.Value {
		prompt := call.Argument(0).String()
		var opts aiservice.GenerateOptions
		if m, ok := call.Argument(1).Export().(map[string]interface{}); ok {
			opts.Model = stringField(m, "model")
			opts.System = stringField(m, "system")
			opts.MaxTokens = intField(m, "maxTokens")
			opts.Temperature = floatField(m, "temperature")
		}
		text, err := caps.AI.Generate(ctx, prompt, opts)
		if err != nil {
			hold.throwErr(vm, err)
		}
		return vm.ToValue(text)
	})

	_ = obj.Set("analyze", func(call goja.FunctionCall) goja.Value {
		content := call.Argument(0).String()
		var opts aiservice.AnalyzeOptions
		if m, ok := call.Argument(1).Export().(map[string]interface{}); ok {
			opts.Model = stringField(m, "model")
			opts.Task = stringField(m, "task")
		}
		result, err := caps.AI.Analyze(ctx, content, opts)
		if err != nil {
			hold.throwErr(vm, err)
		}
		out := vm.NewObject()
		_ = out.Set("summary", result.Summary)
		findings := make([]interface{}, len(result.Findings))
		for i, f := range result.Findings {
			findings[i] = map[string]interface{}{
				"severity": f.Severity,
				"message":  f.Message,
				"location": f.Location,
			}
		}
		_ = out.Set("findings", findings)
		return out
	})

	return obj
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func intField(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func floatField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}
