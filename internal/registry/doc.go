// Package registry is the persistence-facing plugin manager: the
// install/enable/disable lifecycle, usage counters, and health status
// the loader and router read and report back into. It stays thin - the
// sandbox consumes it through the Registry interface and never touches
// storage directly. Two stores are provided: a BoltDB-backed store for
// the CLI and an in-memory store for embedding and tests.
package registry
