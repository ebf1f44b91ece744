package ports

import (
	"context"
	"time"

	"luna-vmm/pkg/models"
)

// VMDriver is the port definition for a hypervisor backend. Implementations
// own the process handle exclusively: no other component may signal or read
// from the spawned VM process.
type VMDriver interface {
	// Start launches the VM headless. completionFn is invoked exactly once
	// when the process exits, with its exit error; an exit before readiness is
	// a startup failure, not success.
	Start(ctx context.Context, instance *models.VMInstance, completionFn func(error)) error
	// Stop requests a graceful shutdown, waits a bounded grace period and
	// force kills if the process is still alive.
	Stop(ctx context.Context, instance *models.VMInstance) error
	// Pid returns the process id of the running VM.
	Pid(ctx context.Context, instance *models.VMInstance) (int, error)
}

// HealthChecker polls the workload readiness probe.
type HealthChecker interface {
	// WaitUntilReady blocks until the endpoint reports ready, the wait budget
	// is spent, or ctx is cancelled.
	WaitUntilReady(ctx context.Context, endpoint string) error
}

// ImageService ensures the VM disk image and definition exist locally.
type ImageService interface {
	// EnsureImage is idempotent: a valid image at the target path is left
	// untouched.
	EnsureImage(ctx context.Context, targetPath string) error
	// Invalidate marks the image at the target path as corrupt so the next
	// EnsureImage re-extracts it from the bundled source.
	Invalidate(ctx context.Context, targetPath string) error
	// MaterializeDefinition writes the persisted VM definition artifact read
	// by the driver at start time.
	MaterializeDefinition(ctx context.Context, instance *models.VMInstance, imagePath string) error
}

// PortAllocator hands out host ports from the configured range. A port stays
// reserved until released by its owning instance reaching a terminal state.
type PortAllocator interface {
	Reserve(ctx context.Context) (int, error)
	Release(port int)
	// Verify reports an error if the reserved port has been taken by a
	// foreign process since reservation.
	Verify(port int) error
}

// Slot is one unit of capacity in the live-instance pool.
type Slot interface {
	Release()
}

// CapacityService caps the number of simultaneously live VM instances.
// Acquire never queues: a request beyond capacity is rejected immediately.
type CapacityService interface {
	Acquire() (Slot, error)
	Limit() int
}

// ProgressEvent is one entry of the ordered progress stream emitted at each
// state transition.
type ProgressEvent struct {
	InstanceID string        `json:"instance_id"`
	Status     models.Status `json:"status"`
	Message    string        `json:"message"`
	Percent    int           `json:"percent"`
	Timestamp  time.Time     `json:"timestamp"`
}

// EventService publishes progress events to UI and telemetry consumers.
type EventService interface {
	Publish(ctx context.Context, event ProgressEvent)
	Subscribe(ctx context.Context) (<-chan ProgressEvent, func())
}

// HistoryStore receives the final record of every instance that reaches a
// terminal state, before it is removed from the active table.
type HistoryStore interface {
	Record(ctx context.Context, instance *models.VMInstance) error
	Close() error
}
