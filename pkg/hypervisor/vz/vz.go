// Package vz drives the macOS Virtualization framework through the vfkit
// command surface. It is the single backend on macOS.
package vz

import (
	"context"
	"fmt"
	"os"
	"syscall"
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

// Config represents the configuration options for the vz backend.
type Config struct {
	// VfkitBin is the vfkit binary to use.
	VfkitBin string
	// StateRoot is the folder to store per-instance state.
	StateRoot string
	// GracePeriod bounds the wait between SIGTERM and SIGKILL.
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

func (s *Service) Start(ctx context.Context, instance *models.VMInstance, completionFn func(error)) error {
	logger := log.GetLogger(ctx).WithFields(logrus.Fields{
		"service": "vz_vm",
		"vm":      instance.ID,
	})

	def, err := provision.LoadDefinition(s.fs, provision.DefinitionPath(s.config.StateRoot, instance.ID))
	if err != nil {
		return errors.StartupFailureError{Hypervisor: "vz", Cause: err}
	}

	state := NewState(instance.ID, s.config.StateRoot, s.fs)

	if err := s.fs.MkdirAll(state.Root(), defaults.DataDirPerm); err != nil {
		return errors.StartupFailureError{Hypervisor: "vz", Cause: err}
	}

	args := []string{
		"--cpus", fmt.Sprintf("%d", def.Allocation.VCPU),
		"--memory", fmt.Sprintf("%d", def.Allocation.MemoryMB),
		"--bootloader", "efi,create",
		"--device", fmt.Sprintf("virtio-blk,path=%s", def.ImagePath),
		"--device", fmt.Sprintf("virtio-net,nat,forward=tcp:127.0.0.1:%d::%d", def.Allocation.HostPort, def.GuestPort),
	}

	logger.Debug("spawning vfkit process")

	proc, err := shared.Launch(s.fs, s.config.VfkitBin, args, state.StdoutPath(), state.StderrPath(), completionFn)
	if err != nil {
		return errors.StartupFailureError{Hypervisor: "vz", Cause: err}
	}

	if err := state.SetPid(proc.Pid); err != nil {
		return fmt.Errorf("saving pid %d to file: %w", proc.Pid, err)
	}

	logger.Infof("vfkit started with pid %d", proc.Pid)

	return nil
}

func (s *Service) Stop(ctx context.Context, instance *models.VMInstance) error {
	logger := log.GetLogger(ctx).WithField("service", "vz_vm").WithField("vm", instance.ID)

	state := NewState(instance.ID, s.config.StateRoot, s.fs)

	pid, err := state.PID()
	if err != nil {
		return errors.ErrNoProcess
	}

	if shared.ProcessAlive(pid) {
		if err := signalProcess(pid, syscall.SIGTERM); err != nil {
			logger.Warnf("graceful shutdown signal failed: %s", err)
		}

		if !shared.WaitForExit(pid, s.config.GracePeriod) {
			logger.Warn("grace period spent, force killing vfkit")

			if err := signalProcess(pid, syscall.SIGKILL); err != nil {
				return fmt.Errorf("force killing pid %d: %w", pid, err)
			}
		}
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

func signalProcess(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	return proc.Signal(sig)
}
