package luavm

import (
	"encoding/json"

	lua "github.com/yuin/gopher-lua"
)

// safeModules are the built-in libraries a plugin may require without
// any grant.
var safeModules = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
}

// newState creates a Lua state with only the safe standard libraries
// open. Filesystem, network, and AI access are never reachable through
// modules; they exist only as capability handles injected onto the
// context argument.
func newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Code-loading escapes out of the sandbox.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.PreloadModule("json", jsonLoader)
	installSafeRequire(L)

	return L
}

// installSafeRequire replaces require with an allow-list version.
// Only the safe built-ins and preloaded modules resolve; everything
// else raises, and nothing is ever loaded from disk.
func installSafeRequire(L *lua.LState) {
	original := L.GetGlobal("require")
	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !safeModules[name] && name != "json" {
			L.RaiseError("module %q is not available", name)
			return 0
		}
		L.Push(original)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}

// jsonLoader provides json.encode and json.decode.
func jsonLoader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "encode", L.NewFunction(func(L *lua.LState) int {
		data, err := json.Marshal(toGo(L.CheckAny(1)))
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LString(data))
		return 1
	}))

	L.SetField(mod, "decode", L.NewFunction(func(L *lua.LState) int {
		var v interface{}
		if err := json.Unmarshal([]byte(L.CheckString(1)), &v); err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(toLua(L, v))
		return 1
	}))

	L.Push(mod)
	return 1
}
