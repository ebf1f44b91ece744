package stop

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	cmdflags "luna-vmm/internal/command/flags"
	"luna-vmm/internal/config"
	"luna-vmm/internal/inject"
	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/flags"
	"luna-vmm/pkg/hypervisor"
	"luna-vmm/pkg/log"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/provision"
)

func NewCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "stop [instance-id]",
		Short: "Stop a persisted Luna VM, or all of them",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}

			stopped, err := Instances(cmd.Context(), cfg, afero.NewOsFs(), id)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "stopped %d vm(s)\n", stopped)

			return nil
		},
	}

	cmdflags.AddVMFlagsToCommand(cmd, cfg)
	cmdflags.AddHypervisorFlagsToCommand(cmd, cfg)

	return cmd, nil
}

// Instances stops persisted instances through their recorded hypervisor and
// removes their state directories. An empty id means all of them. Also used
// by the restart command before it boots a fresh instance.
func Instances(ctx context.Context, cfg *config.Config, fs afero.Fs, id string) (int, error) {
	defs, err := provision.ListDefinitions(fs, cfg.StateRootDir)
	if err != nil {
		return 0, err
	}

	drivers := hypervisor.NewFromConfig(inject.HypervisorConfig(cfg), fs)
	logger := log.GetLogger(ctx)
	stopped := 0

	for _, def := range defs {
		if id != "" && def.InstanceID != id {
			continue
		}

		driver, ok := drivers[def.Hypervisor]
		if !ok {
			logger.Warnf("no %s driver for persisted vm %s", def.Hypervisor, def.InstanceID)

			continue
		}

		instance := &models.VMInstance{
			ID:         def.InstanceID,
			Status:     models.StatusRunning,
			Hypervisor: def.Hypervisor,
			Allocation: def.Allocation,
		}

		if err := driver.Stop(ctx, instance); err != nil {
			logger.Warnf("stopping vm %s: %s", def.InstanceID, err)
		}

		if err := fs.RemoveAll(filepath.Join(cfg.StateRootDir, def.InstanceID)); err != nil {
			logger.Warnf("removing state for vm %s: %s", def.InstanceID, err)
		}

		stopped++
	}

	if id != "" && stopped == 0 {
		return 0, errors.ErrInstanceNotFound
	}

	return stopped, nil
}
