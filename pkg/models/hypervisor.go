package models

// Hypervisor identifies a virtualization backend. The set is closed: selection
// happens once in the hypervisor package and is never re-branched downstream.
type Hypervisor string

const (
	// HypervisorHyperV is the Windows native hardware-assisted hypervisor.
	HypervisorHyperV Hypervisor = "hyperv"
	// HypervisorVirtualBox is the general purpose fallback on Windows.
	HypervisorVirtualBox Hypervisor = "virtualbox"
	// HypervisorVZ is the macOS native virtualization framework, driven
	// through the vfkit command surface.
	HypervisorVZ Hypervisor = "vz"
	// HypervisorQEMUKVM is hardware accelerated QEMU on Linux.
	HypervisorQEMUKVM Hypervisor = "qemu-kvm"
	// HypervisorQEMUTCG is software emulated QEMU, the Linux fallback.
	HypervisorQEMUTCG Hypervisor = "qemu-tcg"
)

func (h Hypervisor) String() string {
	return string(h)
}
