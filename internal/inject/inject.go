// Package inject assembles the orchestrator and its ports from the daemon
// configuration.
package inject

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"

	"luna-vmm/internal/config"
	"luna-vmm/pkg/app"
	"luna-vmm/pkg/capacity"
	"luna-vmm/pkg/events"
	"luna-vmm/pkg/health"
	"luna-vmm/pkg/history"
	"luna-vmm/pkg/hostinfo"
	"luna-vmm/pkg/hypervisor"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/planner/netport"
	"luna-vmm/pkg/ports"
	"luna-vmm/pkg/provision"
	"luna-vmm/pkg/recovery"
)

// InitializePorts builds the port implementations from the config. The caller
// owns the returned collection and must Close the history store when done.
func InitializePorts(cfg *config.Config) (*ports.Collection, error) {
	fs := afero.NewOsFs()

	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	return &ports.Collection{
		Drivers: hypervisor.NewFromConfig(HypervisorConfig(cfg), fs),
		Health:  health.New(cfg.HealthInterval, cfg.HealthMaxWait),
		Image: provision.New(fs,
			cfg.ImageSourcePath,
			filepath.Join(cfg.StateRootDir, "provision.lock"),
			cfg.StateRootDir),
		Ports:    netport.New(cfg.PortRangeStart, cfg.PortRangeEnd),
		Capacity: capacity.New(cfg.MaxInstances),
		Events:   events.NewBus(),
		History:  store,
	}, nil
}

// InitializeApp builds the orchestrator on top of the ports.
func InitializeApp(cfg *config.Config, portsCol *ports.Collection) (*app.App, error) {
	tier, err := cfg.WorkloadTier()
	if err != nil {
		return nil, err
	}

	memoryOverrideMB, err := cfg.MemoryOverrideMB()
	if err != nil {
		return nil, err
	}

	hvCfg := HypervisorConfig(cfg)

	appCfg := &app.Config{
		ImagePath:        cfg.ImagePath(),
		RetryBudget:      cfg.RetryBudget,
		Tier:             tier,
		MemoryOverrideMB: memoryOverrideMB,
		Platform:         runtime.GOOS,
		Capacity:         hostinfo.Snapshot,
		Selector: func() ([]models.Hypervisor, error) {
			return hypervisor.Select(runtime.GOOS, hypervisor.HostProbes{Config: hvCfg})
		},
	}

	coordinator := recovery.NewCoordinator(
		&recovery.PortConflict{Allocator: portsCol.Ports},
		&recovery.ResourceShortage{Capacity: hostinfo.Snapshot},
		&recovery.Permission{Fs: afero.NewOsFs(), Paths: []string{cfg.StateRootDir, cfg.ImagePath()}},
		&recovery.Reinstall{Image: portsCol.Image, ImagePath: cfg.ImagePath()},
	)

	return app.New(appCfg, portsCol, coordinator), nil
}

// HypervisorConfig maps the daemon config onto the backend config. Shared
// with the commands that rebuild drivers outside a running daemon.
func HypervisorConfig(cfg *config.Config) *hypervisor.Config {
	return &hypervisor.Config{
		StateRoot:       cfg.StateRootDir,
		QEMUBin:         cfg.QEMUBin,
		VBoxManageBin:   cfg.VBoxManageBin,
		VBoxHeadlessBin: cfg.VBoxHeadlessBin,
		PowerShellBin:   cfg.PowerShellBin,
		VfkitBin:        cfg.VfkitBin,
		StopGracePeriod: cfg.StopGracePeriod,
	}
}
