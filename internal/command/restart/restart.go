package restart

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	cmdflags "luna-vmm/internal/command/flags"
	"luna-vmm/internal/command/stop"
	"luna-vmm/internal/command/up"
	"luna-vmm/internal/config"
	"luna-vmm/pkg/flags"
	"luna-vmm/pkg/log"
)

func NewCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Stop any persisted Luna VM, then boot and supervise a fresh one",
		PreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			stopped, err := stop.Instances(ctx, cfg, afero.NewOsFs(), "")
			if err != nil {
				return err
			}

			if stopped > 0 {
				log.GetLogger(ctx).Infof("stopped %d stale vm(s)", stopped)
			}

			return up.Run(ctx, cfg)
		},
	}

	cmdflags.AddVMFlagsToCommand(cmd, cfg)
	cmdflags.AddHypervisorFlagsToCommand(cmd, cfg)
	cmdflags.AddMetricsFlagsToCommand(cmd, cfg)

	return cmd, nil
}
