package defaults

import "time"

const (
	// StateRootDir is the default directory to use for runtime state.
	StateRootDir = "/var/lib/luna"

	// HistoryDBFile is the instance history database, relative to the state root.
	HistoryDBFile = "history.db"

	// ImageFile is the provisioned VM disk image, relative to the state root.
	ImageFile = "luna.img"

	// DataDirPerm is the permissions to use for data folders.
	DataDirPerm = 0o755

	// DataFilePerm is the permissions to use for data files.
	DataFilePerm = 0o644

	// PortRangeStart is the first candidate host port for guest forwarding.
	PortRangeStart = 8080

	// PortRangeEnd is the last candidate host port, inclusive.
	PortRangeEnd = 8100

	// GuestAgentPort is the port the Luna agent listens on inside the guest.
	GuestAgentPort = 8080

	// MinMemoryMB is the floor for a VM memory allocation.
	MinMemoryMB = 1024

	// MaxMemoryMB is the ceiling for a VM memory allocation.
	MaxMemoryMB = 4096

	// MinVCPU and MaxVCPU bound the vcpu allocation.
	MinVCPU = 1
	MaxVCPU = 4

	// MaxInstances caps the number of simultaneously live VM instances.
	MaxInstances = 10

	// RecoveryBudget is the number of full pipeline restarts allowed per instance.
	RecoveryBudget = 5

	// HealthInterval is the period between readiness probes.
	HealthInterval = 2 * time.Second

	// HealthMaxWait bounds the whole readiness wait.
	HealthMaxWait = 60 * time.Second

	// StopGracePeriod is how long to wait after a graceful shutdown request
	// before the VM process is force killed.
	StopGracePeriod = 10 * time.Second

	// ProvisionLockRetry is the interval between attempts to take the
	// cross-process image extraction lock.
	ProvisionLockRetry = 500 * time.Millisecond

	// QEMUBin is the name of the QEMU binary.
	QEMUBin = "qemu-system-x86_64"

	// VBoxManageBin and VBoxHeadlessBin are the VirtualBox binaries.
	VBoxManageBin   = "VBoxManage"
	VBoxHeadlessBin = "VBoxHeadless"

	// PowerShellBin hosts the Hyper-V cmdlets on Windows.
	PowerShellBin = "powershell"

	// VfkitBin is the Virtualization.framework frontend on macOS.
	VfkitBin = "vfkit"

	// MetricsEndpoint is where the Prometheus metrics are exposed. Empty
	// disables the endpoint.
	MetricsEndpoint = ""
)
