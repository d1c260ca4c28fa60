// Package luavm is the in-process Lua execution backend. Plugin source
// is compiled once at load time; every run gets a fresh, sandboxed
// interpreter so no state leaks between invocations. The interpreter
// opens only the safe standard libraries, require is restricted to an
// explicit allow-list, and capability handles (workspace, http, ai) are
// injected onto the context argument only when the manifest grants
// them. The wall-clock deadline rides on the interpreter's context, so
// runaway scripts abort with the rest of the execution.
package luavm
