package hypervisor

import (
	"os"
	"os/exec"

	"luna-vmm/pkg/models"
)

// Probes answers whether a backend is installed and enabled on this host.
type Probes interface {
	Usable(h models.Hypervisor) bool
}

// HostProbes checks the real host: binaries on PATH and, for KVM, the
// acceleration device.
type HostProbes struct {
	Config *Config
}

func (p HostProbes) Usable(h models.Hypervisor) bool {
	switch h {
	case models.HypervisorQEMUKVM:
		if !binaryUsable(p.Config.QEMUBin) {
			return false
		}

		_, err := os.Stat("/dev/kvm")

		return err == nil
	case models.HypervisorQEMUTCG:
		return binaryUsable(p.Config.QEMUBin)
	case models.HypervisorVirtualBox:
		return binaryUsable(p.Config.VBoxManageBin) && binaryUsable(p.Config.VBoxHeadlessBin)
	case models.HypervisorHyperV:
		if !binaryUsable(p.Config.PowerShellBin) {
			return false
		}

		// The Hyper-V cmdlets are only present when the feature is enabled.
		return exec.Command(p.Config.PowerShellBin,
			"-NoProfile", "-NonInteractive", "-Command", "Get-Command Get-VM").Run() == nil
	case models.HypervisorVZ:
		return binaryUsable(p.Config.VfkitBin)
	default:
		return false
	}
}

func binaryUsable(bin string) bool {
	if bin == "" {
		return false
	}

	_, err := exec.LookPath(bin)

	return err == nil
}

// ProbeFunc adapts a func to the Probes interface; used by tests.
type ProbeFunc func(h models.Hypervisor) bool

func (f ProbeFunc) Usable(h models.Hypervisor) bool { return f(h) }
