package container

import (
	"fmt"
	"strconv"

	"github.com/forgehold/crucible/internal/manifest"
)

// buildRunArgs composes the container CLI arguments for one execution.
// Isolation flags derive from the manifest alone; the caller never
// widens them.
func buildRunArgs(name string, m *manifest.Manifest) []string {
	args := []string{"run", "-i", "--name", name}

	if m.Permissions.AllowsNetwork() {
		args = append(args, "--network", "bridge")
	} else {
		args = append(args, "--network", "none")
	}

	memoryMB := m.MemoryLimitMB
	if memoryMB <= 0 {
		memoryMB = manifest.DefaultMemoryLimitMB
	}
	args = append(args, "--memory", fmt.Sprintf("%dm", memoryMB))

	if m.CPUShares > 0 {
		args = append(args, "--cpu-shares", strconv.Itoa(m.CPUShares))
	}

	// No privilege escalation inside the container.
	args = append(args, "--security-opt", "no-new-privileges")

	return append(args, m.Image)
}
