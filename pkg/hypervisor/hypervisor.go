// Package hypervisor detects which virtualization backends are usable on the
// current host and builds the driver instances for them. Selection happens
// once per ensure-ready pipeline; downstream components never branch on the
// platform again.
package hypervisor

import (
	"time"

	"github.com/spf13/afero"

	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/hypervisor/hyperv"
	"luna-vmm/pkg/hypervisor/qemu"
	"luna-vmm/pkg/hypervisor/virtualbox"
	"luna-vmm/pkg/hypervisor/vz"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/ports"
)

// Config carries the backend binaries and state location. An empty binary
// path disables its backend.
type Config struct {
	StateRoot       string
	QEMUBin         string
	VBoxManageBin   string
	VBoxHeadlessBin string
	PowerShellBin   string
	VfkitBin        string
	StopGracePeriod time.Duration
}

// preference is the per-platform backend order: most capable first.
var preference = map[string][]models.Hypervisor{
	"windows": {models.HypervisorHyperV, models.HypervisorVirtualBox},
	"darwin":  {models.HypervisorVZ},
	"linux":   {models.HypervisorQEMUKVM, models.HypervisorQEMUTCG},
}

// Select returns the usable backends for the platform in preference order.
// Each candidate is gated by its capability probe; probes only query the
// host, they never mutate it.
func Select(platform string, probes Probes) ([]models.Hypervisor, error) {
	usable := []models.Hypervisor{}

	for _, candidate := range preference[platform] {
		if probes.Usable(candidate) {
			usable = append(usable, candidate)
		}
	}

	if len(usable) == 0 {
		return nil, errors.HypervisorUnavailableError{Platform: platform}
	}

	return usable, nil
}

// NewFromConfig creates the driver instances for every backend the config
// enables.
func NewFromConfig(cfg *Config, fs afero.Fs) map[models.Hypervisor]ports.VMDriver {
	drivers := map[models.Hypervisor]ports.VMDriver{}

	if cfg.QEMUBin != "" {
		drivers[models.HypervisorQEMUKVM] = qemu.New(&qemu.Config{
			QEMUBin:     cfg.QEMUBin,
			StateRoot:   cfg.StateRoot,
			Accel:       "kvm",
			GracePeriod: cfg.StopGracePeriod,
		}, fs)
		drivers[models.HypervisorQEMUTCG] = qemu.New(&qemu.Config{
			QEMUBin:     cfg.QEMUBin,
			StateRoot:   cfg.StateRoot,
			Accel:       "tcg",
			GracePeriod: cfg.StopGracePeriod,
		}, fs)
	}

	if cfg.VBoxManageBin != "" && cfg.VBoxHeadlessBin != "" {
		drivers[models.HypervisorVirtualBox] = virtualbox.New(&virtualbox.Config{
			VBoxManageBin:   cfg.VBoxManageBin,
			VBoxHeadlessBin: cfg.VBoxHeadlessBin,
			StateRoot:       cfg.StateRoot,
			GracePeriod:     cfg.StopGracePeriod,
		}, fs)
	}

	if cfg.PowerShellBin != "" {
		drivers[models.HypervisorHyperV] = hyperv.New(&hyperv.Config{
			PowerShellBin: cfg.PowerShellBin,
			StateRoot:     cfg.StateRoot,
			GracePeriod:   cfg.StopGracePeriod,
		}, fs)
	}

	if cfg.VfkitBin != "" {
		drivers[models.HypervisorVZ] = vz.New(&vz.Config{
			VfkitBin:    cfg.VfkitBin,
			StateRoot:   cfg.StateRoot,
			GracePeriod: cfg.StopGracePeriod,
		}, fs)
	}

	return drivers
}
