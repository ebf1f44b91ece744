// Package app hosts the orchestrator: the facade that sequences resource
// planning, hypervisor selection, provisioning, process supervision, health
// checking and recovery into the public ensure-ready, stop and restart
// operations.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/log"
	"luna-vmm/pkg/metrics"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/planner"
	"luna-vmm/pkg/ports"
	"luna-vmm/pkg/recovery"
)

// Config carries the orchestrator settings.
type Config struct {
	// ImagePath is where the provisioned VM disk image lives.
	ImagePath string
	// RetryBudget caps the full pipeline restarts per instance.
	RetryBudget int
	// Tier biases the resource allocation.
	Tier models.WorkloadTier
	// MemoryOverrideMB replaces the planned memory allocation when non-zero.
	// It is still clamped to the allocation window.
	MemoryOverrideMB int64
	// Platform is the host platform (runtime.GOOS).
	Platform string
	// Capacity returns a fresh host capacity snapshot.
	Capacity func() models.HostCapacity
	// Selector returns the usable hypervisors in preference order.
	Selector func() ([]models.Hypervisor, error)
}

type App struct {
	cfg      *Config
	ports    *ports.Collection
	planner  *planner.Planner
	recovery *recovery.Coordinator

	mu        sync.Mutex
	instances map[string]*handle
}

// handle is the orchestrator-private bookkeeping for one active instance.
// The instance it wraps is mutated by exactly one pipeline goroutine at a
// time; Stop coordinates through the cancel func and the done channel.
type handle struct {
	instance *models.VMInstance
	slot     ports.Slot

	cancel      context.CancelFunc
	done        chan struct{}
	processLive bool
	lastPercent int
}

func New(cfg *Config, portsCol *ports.Collection, rec *recovery.Coordinator) *App {
	return &App{
		cfg:       cfg,
		ports:     portsCol,
		planner:   planner.New(portsCol.Ports),
		recovery:  rec,
		instances: map[string]*handle{},
	}
}

// Get returns the active instance with the given id.
func (a *App) Get(id string) (*models.VMInstance, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	h, ok := a.instances[id]
	if !ok {
		return nil, errors.ErrInstanceNotFound
	}

	return h.instance, nil
}

// List returns every instance in the active table.
func (a *App) List() []*models.VMInstance {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*models.VMInstance, 0, len(a.instances))
	for _, h := range a.instances {
		out = append(out, h.instance)
	}

	return out
}

// Accept marks a Ready instance as Running: the caller has taken the
// endpoint into use.
func (a *App) Accept(ctx context.Context, id string) error {
	a.mu.Lock()
	h, ok := a.instances[id]
	a.mu.Unlock()

	if !ok {
		return errors.ErrInstanceNotFound
	}

	return a.transition(ctx, h, models.StatusRunning, "workload accepted")
}

// Stop terminates an instance. If the instance is still mid-pipeline the
// pipeline is cancelled first and performs the stop itself; otherwise the
// instance is stopped here.
func (a *App) Stop(ctx context.Context, id string) error {
	a.mu.Lock()
	h, ok := a.instances[id]
	a.mu.Unlock()

	if !ok {
		return errors.ErrInstanceNotFound
	}

	h.cancel()

	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	a.mu.Lock()
	_, active := a.instances[id]
	a.mu.Unlock()

	if !active {
		// The pipeline observed the cancellation and finalized the instance.
		return nil
	}

	return a.stopInstance(ctx, h)
}

// Restart stops the instance and runs a fresh ensure-ready pipeline.
func (a *App) Restart(ctx context.Context, id string) (*models.VMInstance, error) {
	if err := a.Stop(ctx, id); err != nil && err != errors.ErrInstanceNotFound {
		return nil, fmt.Errorf("stopping instance %s: %w", id, err)
	}

	return a.EnsureReady(ctx)
}

// stopInstance runs the Stopping -> Terminated sequence for an instance that
// is no longer owned by a pipeline goroutine.
func (a *App) stopInstance(ctx context.Context, h *handle) error {
	if err := a.transition(ctx, h, models.StatusStopping, "stopping vm"); err != nil {
		return err
	}

	if h.processLive {
		driver := a.ports.Drivers[h.instance.Hypervisor]
		if err := driver.Stop(ctx, h.instance); err != nil {
			log.GetLogger(ctx).WithField("vm", h.instance.ID).Warnf("stopping vm process: %s", err)
		}

		h.processLive = false
	}

	if err := a.transition(ctx, h, models.StatusTerminated, "vm terminated"); err != nil {
		return err
	}

	a.finalize(ctx, h)

	return nil
}

// finalize flushes telemetry and releases the shared resources. Ports and
// slots are only freed here, once the instance is terminal.
func (a *App) finalize(ctx context.Context, h *handle) {
	now := time.Now().UTC()
	h.instance.TerminatedAt = &now

	if err := a.ports.History.Record(ctx, h.instance); err != nil {
		log.GetLogger(ctx).WithField("vm", h.instance.ID).Warnf("flushing instance history: %s", err)
	}

	if h.instance.Allocation.HostPort != 0 {
		a.ports.Ports.Release(h.instance.Allocation.HostPort)
	}

	h.slot.Release()
	metrics.LiveInstances.Dec()

	a.mu.Lock()
	delete(a.instances, h.instance.ID)
	a.mu.Unlock()
}

// transition moves the instance along the state machine and publishes the
// progress event. Transitions for one instance are totally ordered; events
// carry a non-decreasing percent within one pipeline run.
func (a *App) transition(ctx context.Context, h *handle, next models.Status, message string) error {
	current := h.instance.Status
	if !current.CanTransition(next) {
		return fmt.Errorf("invalid transition %s -> %s for vm %s", current, next, h.instance.ID)
	}

	h.instance.Status = next

	percent := next.Percent()
	if next == models.StatusRecovering {
		percent = h.lastPercent
	}

	h.lastPercent = percent

	log.GetLogger(ctx).WithField("vm", h.instance.ID).Debugf("state %s -> %s", current, next)

	a.ports.Events.Publish(ctx, ports.ProgressEvent{
		InstanceID: h.instance.ID,
		Status:     next,
		Message:    message,
		Percent:    percent,
		Timestamp:  time.Now().UTC(),
	})

	return nil
}
