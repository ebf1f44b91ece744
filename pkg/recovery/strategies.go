package recovery

import (
	"context"
	"os"
	"runtime"

	"github.com/spf13/afero"

	"luna-vmm/pkg/defaults"
	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/ports"
)

// PortConflict reassigns a fresh host port when the planned one turned out to
// be taken at bind time.
type PortConflict struct {
	Allocator ports.PortAllocator
}

func (s *PortConflict) Name() string { return "port_conflict" }

func (s *PortConflict) Recover(ctx context.Context, instance *models.VMInstance, fault errors.FaultKind) (bool, error) {
	if fault != errors.FaultPortConflict {
		return false, nil
	}

	if instance.Allocation.HostPort != 0 {
		s.Allocator.Release(instance.Allocation.HostPort)
	}

	port, err := s.Allocator.Reserve(ctx)
	if err != nil {
		return false, err
	}

	instance.Allocation.HostPort = port

	return true, nil
}

// ResourceShortage shrinks the memory allocation toward the floor when the
// host is low on available memory.
type ResourceShortage struct {
	// Capacity returns a fresh host capacity snapshot.
	Capacity func() models.HostCapacity
}

func (s *ResourceShortage) Name() string { return "resource_shortage" }

func (s *ResourceShortage) Recover(_ context.Context, instance *models.VMInstance, fault errors.FaultKind) (bool, error) {
	if fault != errors.FaultResourceExhaustion {
		return false, nil
	}

	if instance.Allocation.MemoryMB <= defaults.MinMemoryMB {
		return false, nil
	}

	capacity := s.Capacity()
	if capacity.AvailableMemoryMB >= instance.Allocation.MemoryMB*2 {
		// Plenty of headroom; shrinking will not help whatever went wrong.
		return false, nil
	}

	shrunk := instance.Allocation.MemoryMB / 2
	if shrunk < defaults.MinMemoryMB {
		shrunk = defaults.MinMemoryMB
	}

	instance.Allocation.MemoryMB = shrunk

	return true, nil
}

// Permission repairs access to the state paths. Unix only: modes are fixed in
// place. On Windows silent elevation is not possible, so the strategy defers.
type Permission struct {
	Fs    afero.Fs
	Paths []string
}

func (s *Permission) Name() string { return "permission" }

func (s *Permission) Recover(_ context.Context, _ *models.VMInstance, fault errors.FaultKind) (bool, error) {
	if fault != errors.FaultPermission {
		return false, nil
	}

	if runtime.GOOS == "windows" {
		return false, nil
	}

	for _, path := range s.Paths {
		info, err := s.Fs.Stat(path)
		if err != nil {
			continue
		}

		perm := os.FileMode(defaults.DataFilePerm)
		if info.IsDir() {
			perm = defaults.DataDirPerm
		}

		if err := s.Fs.Chmod(path, perm); err != nil {
			return false, err
		}
	}

	return true, nil
}

// Reinstall treats the current image as invalid and re-runs provisioning from
// scratch on the next pipeline iteration.
type Reinstall struct {
	Image     ports.ImageService
	ImagePath string
}

func (s *Reinstall) Name() string { return "reinstall" }

func (s *Reinstall) Recover(ctx context.Context, _ *models.VMInstance, fault errors.FaultKind) (bool, error) {
	switch fault {
	case errors.FaultProvisioning, errors.FaultStartupFailure, errors.FaultHealthTimeout:
	default:
		return false, nil
	}

	if err := s.Image.Invalidate(ctx, s.ImagePath); err != nil {
		return false, err
	}

	return true, nil
}
