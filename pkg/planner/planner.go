// Package planner sizes the resource allocation for a VM instance from a
// snapshot of host capacity. Memory and vcpu planning is pure and
// deterministic; the host port comes from the shared allocator.
package planner

import (
	"context"
	"fmt"
	"math"

	"luna-vmm/pkg/defaults"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/ports"
)

type Planner struct {
	portAlloc ports.PortAllocator
}

func New(portAlloc ports.PortAllocator) *Planner {
	return &Planner{portAlloc: portAlloc}
}

// Plan computes the allocation for the given capacity snapshot and workload
// tier. Identical inputs always yield identical memory and vcpu values.
func (p *Planner) Plan(ctx context.Context, capacity models.HostCapacity, tier models.WorkloadTier) (models.Allocation, error) {
	alloc := models.Allocation{
		MemoryMB: PlanMemoryMB(capacity.TotalMemoryMB, tier),
		VCPU:     PlanVCPU(capacity.CPUCores),
	}

	port, err := p.portAlloc.Reserve(ctx)
	if err != nil {
		return models.Allocation{}, fmt.Errorf("reserving host port: %w", err)
	}

	alloc.HostPort = port

	return alloc, nil
}

// PlanMemoryMB returns the tier's share of total host memory, clamped to the
// configured window.
func PlanMemoryMB(totalMemoryMB int64, tier models.WorkloadTier) int64 {
	share := int64(math.Round(float64(totalMemoryMB) * tier.MemoryShare()))

	return clamp(share, defaults.MinMemoryMB, defaults.MaxMemoryMB)
}

// PlanVCPU allocates half the host cores, clamped to [1, 4].
func PlanVCPU(cpuCores int) int {
	return int(clamp(int64(cpuCores/2), defaults.MinVCPU, defaults.MaxVCPU))
}

// ClampMemoryMB bounds an externally supplied memory size to the allocation
// window.
func ClampMemoryMB(memoryMB int64) int64 {
	return clamp(memoryMB, defaults.MinMemoryMB, defaults.MaxMemoryMB)
}

func clamp(v, min, max int64) int64 {
	if v < min {
		return min
	}

	if v > max {
		return max
	}

	return v
}
