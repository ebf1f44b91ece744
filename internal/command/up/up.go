package up

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	cmdflags "luna-vmm/internal/command/flags"
	"luna-vmm/internal/config"
	"luna-vmm/internal/inject"
	"luna-vmm/pkg/flags"
	"luna-vmm/pkg/log"
)

func NewCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Provision and boot the Luna VM, then supervise it until interrupted",
		PreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context(), cfg)
		},
	}

	cmdflags.AddVMFlagsToCommand(cmd, cfg)
	cmdflags.AddHypervisorFlagsToCommand(cmd, cfg)
	cmdflags.AddMetricsFlagsToCommand(cmd, cfg)

	return cmd, nil
}

// Run drives one instance from nothing to Running and supervises it until the
// process is interrupted, then tears it down.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := log.GetLogger(ctx)

	ctx, cancel := context.WithCancel(log.WithLogger(ctx, logger))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	portsCol, err := inject.InitializePorts(cfg)
	if err != nil {
		return err
	}

	defer func() {
		if err := portsCol.History.Close(); err != nil {
			logger.Warnf("closing history store: %s", err)
		}
	}()

	orchestrator, err := inject.InitializeApp(cfg, portsCol)
	if err != nil {
		return err
	}

	eventCh, cancelSub := portsCol.Events.Subscribe(ctx)
	defer cancelSub()

	grp, grpCtx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		for {
			select {
			case event, ok := <-eventCh:
				if !ok {
					return nil
				}

				fmt.Printf("[%3d%%] %-14s %s\n", event.Percent, event.Status, event.Message)
			case <-grpCtx.Done():
				return nil
			}
		}
	})

	if cfg.MetricsEndpoint != "" {
		grp.Go(func() error {
			return serveMetrics(grpCtx, cfg.MetricsEndpoint)
		})
	}

	instance, err := orchestrator.EnsureReady(ctx)
	if err != nil {
		cancel()
		_ = grp.Wait()

		return err
	}

	if err := orchestrator.Accept(ctx, instance.ID); err != nil {
		logger.Warnf("accepting vm: %s", err)
	}

	logger.Infof("luna vm %s running at %s", instance.ID, instance.Endpoint())

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-grpCtx.Done():
	}

	stopCtx, stopCancel := context.WithTimeout(
		log.WithLogger(context.Background(), logger), 3*cfg.StopGracePeriod)
	defer stopCancel()

	if err := orchestrator.Stop(stopCtx, instance.ID); err != nil {
		logger.Errorf("stopping vm: %s", err)
	}

	cancel()

	return grp.Wait()
}

func serveMetrics(ctx context.Context, endpoint string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: endpoint, Handler: mux}

	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	log.GetLogger(ctx).Infof("serving metrics on %s", endpoint)

	if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}

	return nil
}
