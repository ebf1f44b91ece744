// Package virtualbox drives VirtualBox through its command surface. The VM is
// registered and configured with VBoxManage, then run in the foreground via
// the VBoxHeadless frontend so the orchestrator owns a real process handle.
package virtualbox

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
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

// Config represents the configuration options for the VirtualBox backend.
type Config struct {
	// VBoxManageBin is the management binary for registration and shutdown.
	VBoxManageBin string
	// VBoxHeadlessBin is the headless frontend that runs the VM.
	VBoxHeadlessBin string
	// StateRoot is the folder to store per-instance state.
	StateRoot string
	// GracePeriod bounds the wait between ACPI power button and force kill.
	GracePeriod time.Duration
}

type Service struct {
	config *Config
	fs     afero.Fs

	mu sync.Mutex
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

func (s *Service) Start(ctx context.Context, instance *models.VMInstance, completionFn func(error)) error {
	logger := log.GetLogger(ctx).WithFields(logrus.Fields{
		"service": "virtualbox_vm",
		"vm":      instance.ID,
	})

	def, err := provision.LoadDefinition(s.fs, provision.DefinitionPath(s.config.StateRoot, instance.ID))
	if err != nil {
		return errors.StartupFailureError{Hypervisor: "virtualbox", Cause: err}
	}

	state := NewState(instance.ID, s.config.StateRoot, s.fs)

	if err := s.fs.MkdirAll(state.Root(), defaults.DataDirPerm); err != nil {
		return errors.StartupFailureError{Hypervisor: "virtualbox", Cause: err}
	}

	name := vmName(instance)

	if err := s.register(ctx, name, def); err != nil {
		return errors.StartupFailureError{Hypervisor: "virtualbox", Cause: err}
	}

	logger.Debug("spawning VBoxHeadless process")

	proc, err := shared.Launch(s.fs, s.config.VBoxHeadlessBin,
		[]string{"--startvm", name},
		state.StdoutPath(), state.StderrPath(), completionFn)
	if err != nil {
		return errors.StartupFailureError{Hypervisor: "virtualbox", Cause: err}
	}

	if err := state.SetPid(proc.Pid); err != nil {
		return fmt.Errorf("saving pid %d to file: %w", proc.Pid, err)
	}

	logger.Infof("VBoxHeadless started with pid %d", proc.Pid)

	return nil
}

// register creates (or refreshes) the VM definition on the VirtualBox side:
// base machine, resource allocation and the NAT port forward for the agent.
func (s *Service) register(ctx context.Context, name string, def provision.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := [][]string{
		{"createvm", "--name", name, "--ostype", "Linux_64", "--register"},
		{"modifyvm", name,
			"--memory", fmt.Sprintf("%d", def.Allocation.MemoryMB),
			"--cpus", fmt.Sprintf("%d", def.Allocation.VCPU),
			"--nic1", "nat",
			"--natpf1", fmt.Sprintf("luna-agent,tcp,127.0.0.1,%d,,%d", def.Allocation.HostPort, def.GuestPort)},
		{"storagectl", name, "--name", "SATA", "--add", "sata", "--controller", "IntelAHCI"},
		{"storageattach", name, "--storagectl", "SATA", "--port", "0", "--device", "0",
			"--type", "hdd", "--medium", def.ImagePath},
	}

	for _, args := range steps {
		if out, err := exec.CommandContext(ctx, s.config.VBoxManageBin, args...).CombinedOutput(); err != nil {
			// createvm fails if the machine survived a previous run; later
			// steps then refresh the existing definition.
			if args[0] == "createvm" {
				continue
			}

			return fmt.Errorf("VBoxManage %s: %w: %s", args[0], err, string(out))
		}
	}

	return nil
}

func (s *Service) Stop(ctx context.Context, instance *models.VMInstance) error {
	logger := log.GetLogger(ctx).WithField("service", "virtualbox_vm").WithField("vm", instance.ID)

	state := NewState(instance.ID, s.config.StateRoot, s.fs)
	name := vmName(instance)

	pid, err := state.PID()
	if err != nil {
		return errors.ErrNoProcess
	}

	if shared.ProcessAlive(pid) {
		if out, err := exec.CommandContext(ctx, s.config.VBoxManageBin,
			"controlvm", name, "acpipowerbutton").CombinedOutput(); err != nil {
			logger.Warnf("acpipowerbutton failed: %s: %s", err, string(out))
		}

		if !shared.WaitForExit(pid, s.config.GracePeriod) {
			logger.Warn("grace period spent, powering off VM")

			if out, err := exec.CommandContext(ctx, s.config.VBoxManageBin,
				"controlvm", name, "poweroff").CombinedOutput(); err != nil {
				return fmt.Errorf("poweroff: %w: %s", err, string(out))
			}
		}
	}

	if out, err := exec.CommandContext(ctx, s.config.VBoxManageBin,
		"unregistervm", name).CombinedOutput(); err != nil {
		logger.Warnf("unregistervm failed: %s: %s", err, string(out))
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
