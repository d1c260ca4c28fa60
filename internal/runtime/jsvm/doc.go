// Package jsvm is the in-process JavaScript execution backend, built on
// goja. The program is compiled once at load time; each run evaluates
// it in a fresh goja.Runtime so plugin invocations never share state.
// The deadline is enforced by interrupting the interpreter when the
// execution context expires. Capability handles appear on the context
// argument only for granted permissions, and every handle re-checks at
// call time.
package jsvm
