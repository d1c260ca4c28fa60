// Package container is the container execution backend. Each run starts
// one container from the manifest's image, feeds the serialized
// {inputs, context} document to its stdin, and reads stdout to EOF as
// the JSON output. Network is disabled unless the manifest grants
// outbound HTTP, memory and CPU caps come from the manifest, and the
// container is force-removed after every run - success, failure, and
// timeout alike. A host-wide semaphore bounds concurrent containers and
// is acquired before the container is created.
package container
