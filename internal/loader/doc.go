// Package loader orchestrates one plugin execution end to end:
// manifest and input validation, capability context construction,
// backend acquisition, the deadline-bounded run, and telemetry. Each
// invocation walks a strict state machine - Pending, Validating,
// ContextBuilt, Running, then Completed, Failed, or TimedOut - with no
// reordering. Validation failures never start a runtime.
//
// Loaded plugins are cached by (itemID, version); concurrent loads of
// the same key collapse into a single population via singleflight.
// Unload closes the backend handle before evicting the entry, so a
// concurrent reader never observes an evicted-but-live resource.
package loader
