// Package runtime defines the pluggable execution backends and the
// selection rule that maps a manifest onto one of them.
//
// A Backend prepares plugin code once per cached load and hands back a
// Handle; the Handle runs the plugin against a capability context under
// a deadline. Handles never share interpreter state between concurrent
// runs - the in-process VMs build a fresh interpreter per call, and the
// container backend starts one container per call.
//
// Selection is a pure function of the manifest. There is no fallback
// between backends: a runtime this build does not support is a load
// error, never a silent downgrade to weaker isolation.
package runtime
