package luavm

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/forgehold/crucible/internal/aiservice"
	"github.com/forgehold/crucible/internal/capability"
	"github.com/forgehold/crucible/internal/execution"
)

// installConsole injects a console table routing log/warn/error to the
// plugin logger. With a nil context (load probe) output is discarded.
func installConsole(L *lua.LState, caps *capability.Context) {
	console := L.NewTable()
	emit := func(level string) *lua.LFunction {
		return L.NewFunction(func(L *lua.LState) int {
			if caps == nil {
				return 0
			}
			parts := make([]interface{}, 0, L.GetTop())
			for i := 1; i <= L.GetTop(); i++ {
				parts = append(parts, toGo(L.Get(i)))
			}
			switch level {
			case "warn":
				caps.Logger.Warn(parts...)
			case "error":
				caps.Logger.Error(parts...)
			default:
				caps.Logger.Info(parts...)
			}
			return 0
		})
	}
	L.SetField(console, "log", emit("info"))
	L.SetField(console, "warn", emit("warn"))
	L.SetField(console, "error", emit("error"))
	L.SetGlobal("console", console)

	// print routes through the same logger; plugins have no stdout.
	L.SetGlobal("print", emit("info"))
}

// buildContextTable assembles the context argument passed to main.
// Capability sub-tables appear only when the grant covers them; the
// underlying methods still re-check at call time.
func buildContextTable(ctx context.Context, L *lua.LState, caps *capability.Context, ec execution.Context, hold *denialHolder) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "executionId", lua.LString(ec.ExecutionID))
	L.SetField(t, "pluginId", lua.LString(ec.PluginID))
	L.SetField(t, "installationId", lua.LString(ec.InstallationID))
	L.SetField(t, "callerId", lua.LString(ec.CallerID))
	if ec.ProjectID != "" {
		L.SetField(t, "projectId", lua.LString(ec.ProjectID))
	}
	if ec.SessionID != "" {
		L.SetField(t, "sessionId", lua.LString(ec.SessionID))
	}

	grant := ec.Grant
	if len(grant.Filesystem.Read) > 0 || grant.AllowsFilesystemWrite() ||
		len(grant.Filesystem.Execute) > 0 {
		L.SetField(t, "workspace", workspaceTable(L, caps, hold))
	}
	if grant.AllowsNetwork() {
		L.SetField(t, "http", httpTable(ctx, L, caps, hold))
	}
	if len(grant.AI) > 0 {
		L.SetField(t, "ai", aiTable(ctx, L, caps, hold))
	}
	return t
}

func workspaceTable(L *lua.LState, caps *capability.Context, hold *denialHolder) *lua.LTable {
	t := L.NewTable()

	L.SetField(t, "read", L.NewFunction(func(L *lua.LState) int {
		data, err := caps.Workspace.Read(L.CheckString(1))
		if err != nil {
			return hold.raise(L, err)
		}
		L.Push(lua.LString(data))
		return 1
	}))

	L.SetField(t, "write", L.NewFunction(func(L *lua.LState) int {
		if err := caps.Workspace.Write(L.CheckString(1), []byte(L.CheckString(2))); err != nil {
			return hold.raise(L, err)
		}
		return 0
	}))

	L.SetField(t, "delete", L.NewFunction(func(L *lua.LState) int {
		if err := caps.Workspace.Delete(L.CheckString(1)); err != nil {
			return hold.raise(L, err)
		}
		return 0
	}))

	L.SetField(t, "list", L.NewFunction(func(L *lua.LState) int {
		names, err := caps.Workspace.List(L.CheckString(1))
		if err != nil {
			return hold.raise(L, err)
		}
		L.Push(toLua(L, names))
		return 1
	}))

	return t
}

func httpTable(ctx context.Context, L *lua.LState, caps *capability.Context, hold *denialHolder) *lua.LTable {
	t := L.NewTable()

	push := func(L *lua.LState, resp *capability.Response) int {
		out := L.NewTable()
		L.SetField(out, "status", lua.LNumber(resp.StatusCode))
		L.SetField(out, "body", lua.LString(resp.Body))
		L.Push(out)
		return 1
	}

	L.SetField(t, "get", L.NewFunction(func(L *lua.LState) int {
		resp, err := caps.HTTP.Get(ctx, L.CheckString(1))
		if err != nil {
			return hold.raise(L, err)
		}
		return push(L, resp)
	}))

	L.SetField(t, "post", L.NewFunction(func(L *lua.LState) int {
		url := L.CheckString(1)
		contentType := L.OptString(2, "application/json")
		body := L.OptString(3, "")
		resp, err := caps.HTTP.Post(ctx, url, contentType, []byte(body))
		if err != nil {
			return hold.raise(L, err)
		}
		return push(L, resp)
	}))

	return t
}

func aiTable(ctx context.Context, L *lua.LState, caps *capability.Context, hold *denialHolder) *lua.LTable {
	t := L.NewTable()

	L.SetField(t, "generate", L.NewFunction(func(L *lua.LState) int {
		prompt := L.CheckString(1)
		var opts aiservice.GenerateOptions
		if optTbl, ok := L.Get(2).(*lua.LTable); ok {
			if s, ok := optTbl.RawGetString("model").(lua.LString); ok {
				opts.Model = string(s)
			}
			if s, ok := optTbl.RawGetString("system").(lua.LString); ok {
				opts.System = string(s)
			}
			if n, ok := optTbl.RawGetString("maxTokens").(lua.LNumber); ok {
				opts.MaxTokens = int64(n)
			}
			if n, ok := optTbl.RawGetString("temperature").(lua.LNumber); ok {
				opts.Temperature = float64(n)
			}
		}
		text, err := caps.AI.Generate(ctx, prompt, opts)
		if err != nil {
			return hold.raise(L, err)
		}
		L.Push(lua.LString(text))
		return 1
	}))

	L.SetField(t, "analyze", L.NewFunction(func(L *lua.LState) int {
		content := L.CheckString(1)
		var opts aiservice.AnalyzeOptions
		if optTbl, ok := L.Get(2).(*lua.LTable); ok {
			if s, ok := optTbl.RawGetString("model").(lua.LString); ok {
				opts.Model = string(s)
			}
			if s, ok := optTbl.RawGetString("task").(lua.LString); ok {
				opts.Task = string(s)
			}
		}
		result, err := caps.AI.Analyze(ctx, content, opts)
		if err != nil {
			return hold.raise(L, err)
		}
		out := L.NewTable()
		L.SetField(out, "summary", lua.LString(result.Summary))
		findings := L.NewTable()
		for i, f := range result.Findings {
			ft := L.NewTable()
			L.SetField(ft, "severity", lua.LString(f.Severity))
			L.SetField(ft, "message", lua.LString(f.Message))
			L.SetField(ft, "location", lua.LString(f.Location))
			findings.RawSetInt(i+1, ft)
		}
		L.SetField(out, "findings", findings)
		L.Push(out)
		return 1
	}))

	return t
}
