package status

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	cmdflags "luna-vmm/internal/command/flags"
	"luna-vmm/internal/config"
	"luna-vmm/internal/inject"
	"luna-vmm/pkg/flags"
	"luna-vmm/pkg/history"
	"luna-vmm/pkg/hypervisor"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/provision"
)

func NewCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted Luna VMs and, optionally, the instance history",
		PreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			withHistory, err := cmd.Flags().GetBool("history")
			if err != nil {
				return err
			}

			return run(cmd.Context(), cfg, cmd.OutOrStdout(), withHistory)
		},
	}

	cmdflags.AddVMFlagsToCommand(cmd, cfg)
	cmdflags.AddHypervisorFlagsToCommand(cmd, cfg)
	cmd.Flags().Bool("history", false, "Also print the recorded instance history")

	return cmd, nil
}

func run(ctx context.Context, cfg *config.Config, out io.Writer, withHistory bool) error {
	fs := afero.NewOsFs()

	defs, err := provision.ListDefinitions(fs, cfg.StateRootDir)
	if err != nil {
		return err
	}

	drivers := hypervisor.NewFromConfig(inject.HypervisorConfig(cfg), fs)

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHYPERVISOR\tPORT\tPID\tSTATE")

	for _, def := range defs {
		pid, state := "-", "stopped"

		if driver, ok := drivers[def.Hypervisor]; ok {
			instance := &models.VMInstance{ID: def.InstanceID, Hypervisor: def.Hypervisor}

			if p, err := driver.Pid(ctx, instance); err == nil {
				pid = fmt.Sprintf("%d", p)
				state = "running"
			}
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			def.InstanceID, def.Hypervisor, def.Allocation.HostPort, pid, state)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if !withHistory {
		return nil
	}

	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}

	defer store.Close()

	entries, err := store.List(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)

	hw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(hw, "ID\tSTATUS\tHYPERVISOR\tRECOVERIES\tLAST ERROR\tCREATED")

	for _, entry := range entries {
		lastError := entry.LastErrorKind
		if lastError == "" {
			lastError = "-"
		}

		fmt.Fprintf(hw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			entry.ID, entry.Status, entry.Hypervisor,
			entry.RecoveryAttempts, lastError,
			entry.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	return hw.Flush()
}
