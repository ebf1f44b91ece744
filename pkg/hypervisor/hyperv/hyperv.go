// Package hyperv drives the Windows native hypervisor through PowerShell.
// Hyper-V VMs are not child processes of their creator, so Start spawns a
// supervising PowerShell that creates the VM, boots it and then blocks while
// the VM runs; the supervisor exiting mirrors the VM stopping, which keeps
// the one-process-handle contract uniform across backends.
package hyperv

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"luna-vmm/pkg/defaults"
	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/hypervisor/shared"
	"luna-vmm/pkg/log"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/ports"
	"luna-vmm/pkg/provision"
)

// Config represents the configuration options for the Hyper-V backend.
type Config struct {
	// PowerShellBin is the powershell executable to use.
	PowerShellBin string
	// StateRoot is the folder to store per-instance state.
	StateRoot string
	// GracePeriod bounds the wait between Stop-VM and TurnOff.
	GracePeriod time.Duration
}

type Service struct {
	config *Config
	fs     afero.Fs
}

func New(cfg *Config, fs afero.Fs) ports.VMDriver {
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = defaults.StopGracePeriod
	}

	return &Service{config: cfg, fs: fs}
}

func vmName(instance *models.VMInstance) string {
	return fmt.Sprintf("luna-%s", instance.ID)
}

// superviseScript creates the VM if needed, starts it and polls its state
// until it leaves Running, so the script's lifetime tracks the VM's.
const superviseScript = `
$ErrorActionPreference = 'Stop'
if (-not (Get-VM -Name '%[1]s' -ErrorAction SilentlyContinue)) {
  New-VM -Name '%[1]s' -MemoryStartupBytes %[2]dMB -VHDPath '%[3]s' -Generation 2 | Out-Null
  Set-VM -Name '%[1]s' -ProcessorCount %[4]d -StaticMemory
}
Start-VM -Name '%[1]s'
while ((Get-VM -Name '%[1]s').State -eq 'Running') { Start-Sleep -Seconds 2 }
`

func (s *Service) Start(ctx context.Context, instance *models.VMInstance, completionFn func(error)) error {
	logger := log.GetLogger(ctx).WithFields(logrus.Fields{
		"service": "hyperv_vm",
		"vm":      instance.ID,
	})

	def, err := provision.LoadDefinition(s.fs, provision.DefinitionPath(s.config.StateRoot, instance.ID))
	if err != nil {
		return errors.StartupFailureError{Hypervisor: "hyperv", Cause: err}
	}

	state := NewState(instance.ID, s.config.StateRoot, s.fs)

	if err := s.fs.MkdirAll(state.Root(), defaults.DataDirPerm); err != nil {
		return errors.StartupFailureError{Hypervisor: "hyperv", Cause: err}
	}

	script := fmt.Sprintf(superviseScript, vmName(instance), def.Allocation.MemoryMB, def.ImagePath, def.Allocation.VCPU)

	logger.Debug("spawning Hyper-V supervisor")

	proc, err := shared.Launch(s.fs, s.config.PowerShellBin,
		[]string{"-NoProfile", "-NonInteractive", "-WindowStyle", "Hidden", "-Command", script},
		state.StdoutPath(), state.StderrPath(), completionFn)
	if err != nil {
		return errors.StartupFailureError{Hypervisor: "hyperv", Cause: err}
	}

	if err := state.SetPid(proc.Pid); err != nil {
		return fmt.Errorf("saving pid %d to file: %w", proc.Pid, err)
	}

	logger.Infof("Hyper-V supervisor started with pid %d", proc.Pid)

	return nil
}

func (s *Service) Stop(ctx context.Context, instance *models.VMInstance) error {
	logger := log.GetLogger(ctx).WithField("service", "hyperv_vm").WithField("vm", instance.ID)

	state := NewState(instance.ID, s.config.StateRoot, s.fs)
	name := vmName(instance)

	pid, err := state.PID()
	if err != nil {
		return errors.ErrNoProcess
	}

	if out, err := exec.CommandContext(ctx, s.config.PowerShellBin,
		"-NoProfile", "-NonInteractive", "-Command",
		fmt.Sprintf("Stop-VM -Name '%s' -Force", name)).CombinedOutput(); err != nil {
		logger.Warnf("Stop-VM failed: %s: %s", err, string(out))
	}

	if !shared.WaitForExit(pid, s.config.GracePeriod) {
		logger.Warn("grace period spent, turning VM off")

		if out, err := exec.CommandContext(ctx, s.config.PowerShellBin,
			"-NoProfile", "-NonInteractive", "-Command",
			fmt.Sprintf("Stop-VM -Name '%s' -TurnOff", name)).CombinedOutput(); err != nil {
			return fmt.Errorf("turning off VM: %w: %s", err, string(out))
		}
	}

	if out, err := exec.CommandContext(ctx, s.config.PowerShellBin,
		"-NoProfile", "-NonInteractive", "-Command",
		fmt.Sprintf("Remove-VM -Name '%s' -Force", name)).CombinedOutput(); err != nil {
		logger.Warnf("Remove-VM failed: %s: %s", err, string(out))
	}

	if err := state.Delete(); err != nil {
		return fmt.Errorf("deleting state dir: %w", err)
	}

	return nil
}

func (s *Service) Pid(_ context.Context, instance *models.VMInstance) (int, error) {
	state := NewState(instance.ID, s.config.StateRoot, s.fs)

	return state.PID()
}
