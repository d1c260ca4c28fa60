// Package capability builds the per-execution capability context handed
// to plugin code. The context is the only door out of the sandbox:
// filesystem, HTTP, and AI access all pass through it, and every method
// re-checks its own permission before doing any I/O. A context built
// under one grant and retained cannot be used to escalate - the check
// happens at call time, not construction time.
//
// Every denial is a typed permission error naming the exact permission
// string ("file:write:secrets/key.pem"), and every authorized egress
// operation emits a structured audit event attributable to the plugin
// and installation that performed it.
package capability
