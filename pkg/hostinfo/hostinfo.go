// Package hostinfo snapshots the host resources visible to the planner.
package hostinfo

import (
	"runtime"

	"github.com/shirou/gopsutil/mem"

	"luna-vmm/pkg/models"
)

// fallbackMemoryMB is used when the host memory probe fails, so planning can
// still proceed with a conservative figure.
const fallbackMemoryMB = 8192

// Snapshot returns the current host capacity.
func Snapshot() models.HostCapacity {
	capacity := models.HostCapacity{
		TotalMemoryMB:     fallbackMemoryMB,
		AvailableMemoryMB: fallbackMemoryMB / 2,
		CPUCores:          runtime.NumCPU(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		capacity.TotalMemoryMB = int64(vm.Total / (1 << 20))
		capacity.AvailableMemoryMB = int64(vm.Available / (1 << 20))
	}

	return capacity
}
