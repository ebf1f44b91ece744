package flags

import (
	"luna-vmm/internal/config"
	"luna-vmm/pkg/defaults"

	"github.com/spf13/cobra"
)

const (
	stateDirFlag        = "state-dir"
	imageSourceFlag     = "image-source"
	tierFlag            = "tier"
	memoryFlag          = "memory"
	portRangeStartFlag  = "port-range-start"
	portRangeEndFlag    = "port-range-end"
	maxInstancesFlag    = "max-instances"
	retryBudgetFlag     = "retry-budget"
	healthIntervalFlag  = "health-interval"
	healthMaxWaitFlag   = "health-max-wait"
	stopGracePeriodFlag = "stop-grace-period"
	qemuBinFlag         = "qemu-bin"
	vboxManageBinFlag   = "vboxmanage-bin"
	vboxHeadlessBinFlag = "vboxheadless-bin"
	powerShellBinFlag   = "powershell-bin"
	vfkitBinFlag        = "vfkit-bin"
	metricsEndpointFlag = "metrics-endpoint"
)

// AddVMFlagsToCommand will add the VM lifecycle flags to the supplied command.
func AddVMFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.StateRootDir,
		stateDirFlag,
		defaults.StateRootDir,
		"The directory to use as the root for runtime state.")

	cmd.Flags().StringVar(&cfg.ImageSourcePath,
		imageSourceFlag,
		"",
		"The bundled compressed VM disk image to provision from.")

	cmd.Flags().StringVar(&cfg.Tier,
		tierFlag,
		"medium",
		"The workload tier biasing the resource allocation: light, medium or heavy.")

	cmd.Flags().StringVar(&cfg.MemoryOverride,
		memoryFlag,
		"",
		"Override the planned VM memory allocation, e.g. 2GiB.")

	cmd.Flags().IntVar(&cfg.PortRangeStart,
		portRangeStartFlag,
		defaults.PortRangeStart,
		"The first candidate host port for guest forwarding.")

	cmd.Flags().IntVar(&cfg.PortRangeEnd,
		portRangeEndFlag,
		defaults.PortRangeEnd,
		"The last candidate host port for guest forwarding, inclusive.")

	cmd.Flags().IntVar(&cfg.MaxInstances,
		maxInstancesFlag,
		defaults.MaxInstances,
		"The maximum number of simultaneously live VM instances.")

	cmd.Flags().IntVar(&cfg.RetryBudget,
		retryBudgetFlag,
		defaults.RecoveryBudget,
		"Number of full pipeline restarts allowed per instance.")

	cmd.Flags().DurationVar(&cfg.HealthInterval,
		healthIntervalFlag,
		defaults.HealthInterval,
		"The period between workload readiness probes.")

	cmd.Flags().DurationVar(&cfg.HealthMaxWait,
		healthMaxWaitFlag,
		defaults.HealthMaxWait,
		"The maximum time to wait for the workload to report ready.")

	cmd.Flags().DurationVar(&cfg.StopGracePeriod,
		stopGracePeriodFlag,
		defaults.StopGracePeriod,
		"How long to wait for a graceful VM shutdown before force kill.")
}

// AddHypervisorFlagsToCommand will add the backend binary flags to the
// supplied command.
func AddHypervisorFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.QEMUBin,
		qemuBinFlag,
		defaults.QEMUBin,
		"The QEMU binary. Empty disables the QEMU backends.")

	cmd.Flags().StringVar(&cfg.VBoxManageBin,
		vboxManageBinFlag,
		defaults.VBoxManageBin,
		"The VBoxManage binary. Empty disables the VirtualBox backend.")

	cmd.Flags().StringVar(&cfg.VBoxHeadlessBin,
		vboxHeadlessBinFlag,
		defaults.VBoxHeadlessBin,
		"The VBoxHeadless binary.")

	cmd.Flags().StringVar(&cfg.PowerShellBin,
		powerShellBinFlag,
		defaults.PowerShellBin,
		"The PowerShell binary hosting the Hyper-V cmdlets.")

	cmd.Flags().StringVar(&cfg.VfkitBin,
		vfkitBinFlag,
		defaults.VfkitBin,
		"The vfkit binary. Empty disables the Virtualization.framework backend.")
}

// AddMetricsFlagsToCommand will add the metrics server flags to the supplied
// command.
func AddMetricsFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.MetricsEndpoint,
		metricsEndpointFlag,
		defaults.MetricsEndpoint,
		"The listen address for the Prometheus metrics server. Empty disables it.")
}
