// Package qemu drives QEMU as the Linux backend. The same service covers the
// hardware accelerated (KVM) configuration and the software emulation (TCG)
// fallback; only the accelerator argument differs.
package qemu

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

// Config represents the configuration options for the QEMU backend.
type Config struct {
	// QEMUBin is the qemu system binary to use.
	QEMUBin string
	// StateRoot is the folder to store per-instance state (pid, stdio files).
	StateRoot string
	// Accel is the accelerator to pass to -machine: "kvm" or "tcg".
	Accel string
	// GracePeriod bounds the wait between graceful shutdown and force kill.
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

	return &Service{
		config: cfg,
		fs:     fs,
	}
}

func (s *Service) Start(ctx context.Context, instance *models.VMInstance, completionFn func(error)) error {
	logger := log.GetLogger(ctx).WithFields(logrus.Fields{
		"service": "qemu_vm",
		"vm":      instance.ID,
		"accel":   s.config.Accel,
	})

	def, err := provision.LoadDefinition(s.fs, provision.DefinitionPath(s.config.StateRoot, instance.ID))
	if err != nil {
		return errors.StartupFailureError{Hypervisor: s.config.Accel, Cause: err}
	}

	state := NewState(instance.ID, s.config.StateRoot, s.fs)

	if err := s.fs.MkdirAll(state.Root(), defaults.DataDirPerm); err != nil {
		return errors.StartupFailureError{Hypervisor: s.config.Accel, Cause: fmt.Errorf("creating state dir: %w", err)}
	}

	args := []string{
		"-machine", fmt.Sprintf("accel=%s", s.config.Accel),
		"-m", fmt.Sprintf("%dM", def.Allocation.MemoryMB),
		"-smp", fmt.Sprintf("%d", def.Allocation.VCPU),
		"-drive", fmt.Sprintf("file=%s,format=raw,if=virtio", def.ImagePath),
		"-netdev", fmt.Sprintf("user,id=net0,hostfwd=tcp:127.0.0.1:%d-:%d", def.Allocation.HostPort, def.GuestPort),
		"-device", "virtio-net-pci,netdev=net0",
		"-monitor", fmt.Sprintf("unix:%s,server,nowait", state.MonitorSockPath()),
		"-display", "none",
		"-nographic",
		"-serial", "none",
	}

	logger.Debug("spawning qemu process")

	proc, err := shared.Launch(s.fs, s.config.QEMUBin, args, state.StdoutPath(), state.StderrPath(), completionFn)
	if err != nil {
		return errors.StartupFailureError{Hypervisor: s.config.Accel, Cause: err}
	}

	if err := state.SetPid(proc.Pid); err != nil {
		return fmt.Errorf("saving pid %d to file: %w", proc.Pid, err)
	}

	logger.Infof("qemu started with pid %d", proc.Pid)

	return nil
}

func (s *Service) Stop(ctx context.Context, instance *models.VMInstance) error {
	logger := log.GetLogger(ctx).WithField("service", "qemu_vm").WithField("vm", instance.ID)

	state := NewState(instance.ID, s.config.StateRoot, s.fs)

	pid, err := state.PID()
	if err != nil {
		return errors.ErrNoProcess
	}

	if shared.ProcessAlive(pid) {
		// ACPI powerdown first; QEMU forwards it to the guest.
		if err := signalProcess(pid, syscall.SIGTERM); err != nil {
			logger.Warnf("graceful shutdown signal failed: %s", err)
		}

		if !shared.WaitForExit(pid, s.config.GracePeriod) {
			logger.Warn("grace period spent, force killing qemu")

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
