package command

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"luna-vmm/internal/command/restart"
	"luna-vmm/internal/command/status"
	"luna-vmm/internal/command/stop"
	"luna-vmm/internal/command/up"
	"luna-vmm/internal/config"
	"luna-vmm/internal/version"
	"luna-vmm/pkg/flags"
	"luna-vmm/pkg/log"
)

func NewRootCommand() (*cobra.Command, error) {
	cfg := &config.Config{}

	cmd := &cobra.Command{
		Use:   "lunad",
		Short: "lunad - the Luna VM lifecycle manager",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			flags.BindCommandToViper(cmd)

			if err := log.Configure(&cfg.Logging); err != nil {
				return fmt.Errorf("configuring logging: %w", err)
			}

			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	log.AddFlagsToCommand(cmd, &cfg.Logging)

	if err := addRootSubCommands(cmd, cfg); err != nil {
		return nil, fmt.Errorf("adding subcommands: %w", err)
	}

	cobra.OnInitialize(initCobra)

	return cmd, nil
}

func initCobra() {
	viper.SetEnvPrefix("LUNAD")
	viper.AutomaticEnv()
	viper.SetConfigType("yaml")
	viper.SetConfigName("config")
	viper.AddConfigPath("$HOME/.config/lunad/")

	_ = viper.ReadInConfig()
}

func addRootSubCommands(cmd *cobra.Command, cfg *config.Config) error {
	upCmd, err := up.NewCommand(cfg)
	if err != nil {
		return fmt.Errorf("creating up command: %w", err)
	}

	stopCmd, err := stop.NewCommand(cfg)
	if err != nil {
		return fmt.Errorf("creating stop command: %w", err)
	}

	statusCmd, err := status.NewCommand(cfg)
	if err != nil {
		return fmt.Errorf("creating status command: %w", err)
	}

	restartCmd, err := restart.NewCommand(cfg)
	if err != nil {
		return fmt.Errorf("creating restart command: %w", err)
	}

	cmd.AddCommand(upCmd)
	cmd.AddCommand(stopCmd)
	cmd.AddCommand(statusCmd)
	cmd.AddCommand(restartCmd)
	cmd.AddCommand(versionCommand())

	return nil
}

func versionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of lunad",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				long, short bool
				err         error
			)

			if long, err = cmd.Flags().GetBool("long"); err != nil {
				return err
			}

			if short, err = cmd.Flags().GetBool("short"); err != nil {
				return err
			}

			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version.Version)

				return nil
			}

			if long {
				fmt.Fprintf(
					cmd.OutOrStdout(),
					"%s\n  Version:    %s\n  CommitHash: %s\n  BuildDate:  %s\n",
					version.PackageName,
					version.Version,
					version.CommitHash,
					version.BuildDate,
				)

				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", version.PackageName, version.Version)

			return nil
		},
	}

	cmd.Flags().Bool("long", false, "Print the long version information")
	cmd.Flags().Bool("short", false, "Print the short version information")

	return cmd
}
