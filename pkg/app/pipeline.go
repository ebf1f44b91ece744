package app

import (
	"context"
	"fmt"
	"time"

	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/log"
	"luna-vmm/pkg/metrics"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/planner"
	"luna-vmm/pkg/ports"
)

// EnsureReady provisions, boots and health-checks a VM instance, recovering
// from pipeline faults until the retry budget is spent. It returns the
// instance in the Ready state. The only errors surfaced are a capacity
// rejection (no instance state was created) and recovery exhaustion.
func (a *App) EnsureReady(ctx context.Context) (*models.VMInstance, error) {
	slot, err := a.ports.Capacity.Acquire()
	if err != nil {
		metrics.CapacityRejections.Inc()

		return nil, err
	}

	pipelineCtx, cancel := context.WithCancel(ctx)

	h := &handle{
		instance: models.NewVMInstance(),
		slot:     slot,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	a.mu.Lock()
	a.instances[h.instance.ID] = h
	a.mu.Unlock()

	metrics.LiveInstances.Inc()

	defer close(h.done)

	logger := log.GetLogger(ctx).WithField("vm", h.instance.ID)
	logger.Info("ensuring vm is ready")

	for {
		err := a.runPipeline(pipelineCtx, h)
		if err == nil {
			now := time.Now().UTC()
			h.instance.ReadyAt = &now

			metrics.PipelineRuns.WithLabelValues("ready").Inc()
			logger.Infof("vm ready at %s", h.instance.Endpoint())

			return h.instance, nil
		}

		// Whatever failed, the instance may not keep its process handle
		// through recovery or termination.
		a.reapProcess(context.WithoutCancel(pipelineCtx), h)

		if pipelineCtx.Err() != nil {
			return nil, a.abort(context.WithoutCancel(pipelineCtx), h)
		}

		fault := errors.KindOf(err)
		h.instance.SetFault(string(fault), err.Error())
		logger.Warnf("pipeline failed: %s", err)

		if terr := a.transition(pipelineCtx, h, models.StatusRecovering, "recovering"); terr != nil {
			return nil, a.fail(pipelineCtx, h, err)
		}

		if h.instance.RecoveryAttempts >= a.cfg.RetryBudget {
			logger.Warn("recovery budget spent")

			return nil, a.fail(pipelineCtx, h, err)
		}

		strategy, resolved := a.recovery.Recover(pipelineCtx, h.instance, fault)
		if !resolved {
			return nil, a.fail(pipelineCtx, h, err)
		}

		h.instance.RecoveryAttempts++
		h.instance.ClearFault()
		metrics.Recoveries.WithLabelValues(strategy).Inc()
	}
}

// runPipeline is one strictly sequential pass through the startup stages.
// Every failure is returned to EnsureReady for recovery, never to the caller.
func (a *App) runPipeline(ctx context.Context, h *handle) error {
	inst := h.instance

	if err := a.transition(ctx, h, models.StatusProvisioning, "preparing vm environment"); err != nil {
		return err
	}

	// Resource planning. An allocation adjusted by a recovery strategy
	// survives the restart; only missing pieces are re-planned.
	if inst.Allocation.MemoryMB == 0 {
		alloc, err := a.planner.Plan(ctx, a.cfg.Capacity(), a.cfg.Tier)
		if err != nil {
			return err
		}

		if a.cfg.MemoryOverrideMB > 0 {
			alloc.MemoryMB = planner.ClampMemoryMB(a.cfg.MemoryOverrideMB)
		}

		inst.Allocation = alloc
	} else if inst.Allocation.HostPort == 0 {
		port, err := a.ports.Ports.Reserve(ctx)
		if err != nil {
			return err
		}

		inst.Allocation.HostPort = port
	}

	order, err := a.cfg.Selector()
	if err != nil {
		return err
	}

	inst.Hypervisor = order[0]

	driver, ok := a.ports.Drivers[inst.Hypervisor]
	if !ok {
		return errors.HypervisorUnavailableError{Platform: a.cfg.Platform}
	}

	if err := a.ports.Image.EnsureImage(ctx, a.cfg.ImagePath); err != nil {
		return err
	}

	if err := a.ports.Image.MaterializeDefinition(ctx, inst, a.cfg.ImagePath); err != nil {
		return err
	}

	if err := a.transition(ctx, h, models.StatusStarting, "starting vm"); err != nil {
		return err
	}

	// The port was reserved at planning time; a foreign process may have
	// taken it since.
	if err := a.ports.Ports.Verify(inst.Allocation.HostPort); err != nil {
		return err
	}

	exitCh := make(chan error, 1)

	if err := driver.Start(ctx, inst, func(exitErr error) { exitCh <- exitErr }); err != nil {
		return err
	}

	h.processLive = true

	if err := a.transition(ctx, h, models.StatusHealthChecking, "waiting for workload"); err != nil {
		return err
	}

	healthCtx, cancelHealth := context.WithCancel(ctx)
	defer cancelHealth()

	healthCh := make(chan error, 1)

	go func() {
		healthCh <- a.ports.Health.WaitUntilReady(healthCtx, inst.Endpoint())
	}()

	select {
	case exitErr := <-exitCh:
		cancelHealth()
		<-healthCh
		h.processLive = false

		return errors.StartupFailureError{
			Hypervisor: inst.Hypervisor.String(),
			Cause:      fmt.Errorf("vm process exited before ready: %v", exitErr),
		}
	case err := <-healthCh:
		if err != nil {
			return err
		}
	}

	return a.transition(ctx, h, models.StatusReady, "vm ready")
}

// reapProcess stops the VM process if one was spawned in the current pass.
func (a *App) reapProcess(ctx context.Context, h *handle) {
	if !h.processLive {
		return
	}

	if driver, ok := a.ports.Drivers[h.instance.Hypervisor]; ok {
		if err := driver.Stop(ctx, h.instance); err != nil {
			log.GetLogger(ctx).WithField("vm", h.instance.ID).Warnf("reaping vm process: %s", err)
		}
	}

	h.processLive = false
}

// abort handles a caller-initiated cancellation observed mid-pipeline: the
// instance proceeds directly to Stopping and is finalized.
func (a *App) abort(ctx context.Context, h *handle) error {
	if err := a.transition(ctx, h, models.StatusStopping, "stop requested"); err != nil {
		log.GetLogger(ctx).WithField("vm", h.instance.ID).Warnf("aborting pipeline: %s", err)
	}

	if err := a.transition(ctx, h, models.StatusTerminated, "vm terminated"); err != nil {
		log.GetLogger(ctx).WithField("vm", h.instance.ID).Warnf("aborting pipeline: %s", err)
	}

	metrics.PipelineRuns.WithLabelValues("cancelled").Inc()
	a.finalize(ctx, h)

	return context.Canceled
}

// fail marks the instance permanently failed and surfaces the only pipeline
// error callers ever see.
func (a *App) fail(ctx context.Context, h *handle, cause error) error {
	lastFault := errors.KindOf(cause)

	surfaced := errors.RecoveryExhaustedError{
		InstanceID: h.instance.ID,
		Attempts:   h.instance.RecoveryAttempts,
		LastFault:  lastFault,
		LastError:  cause.Error(),
	}

	h.instance.SetFault(string(errors.FaultRecoveryExhausted), cause.Error())

	if err := a.transition(ctx, h, models.StatusFailed, "vm failed permanently"); err != nil {
		log.GetLogger(ctx).WithField("vm", h.instance.ID).Warnf("failing instance: %s", err)
	}

	metrics.PipelineRuns.WithLabelValues("failed").Inc()
	a.finalize(ctx, h)

	return surfaced
}

// Events returns the event service; exposed for the command layer to
// subscribe before kicking off a pipeline.
func (a *App) Events() ports.EventService {
	return a.ports.Events
}
