package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkloadTier biases the memory share of an allocation.
type WorkloadTier string

const (
	TierLight  WorkloadTier = "light"
	TierMedium WorkloadTier = "medium"
	TierHeavy  WorkloadTier = "heavy"
)

// MemoryShare is the fraction of total host memory the tier asks for, before
// clamping.
func (t WorkloadTier) MemoryShare() float64 {
	switch t {
	case TierLight:
		return 0.125
	case TierHeavy:
		return 0.40
	default:
		return 0.25
	}
}

// HostCapacity is a snapshot of the host resources visible to the planner.
type HostCapacity struct {
	TotalMemoryMB     int64 `json:"total_memory_mb"`
	AvailableMemoryMB int64 `json:"available_memory_mb"`
	CPUCores          int   `json:"cpu_cores"`
}

// Allocation is the resource envelope planned for one instance. It is set by
// the planner and mutated afterwards only through recovery remediation.
type Allocation struct {
	MemoryMB int64 `json:"memory_mb" yaml:"memory_mb"`
	VCPU     int   `json:"vcpu" yaml:"vcpu"`
	HostPort int   `json:"host_port" yaml:"host_port"`
}

// Fault records the last pipeline failure for diagnostics. Cleared on a
// successful recovery.
type Fault struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// VMInstance is the central entity of the lifecycle manager. One instance is
// mutated by exactly one pipeline at a time; components receive it as an
// explicit value and hold no hidden state across calls.
type VMInstance struct {
	// ID is the opaque unique identifier, assigned at creation.
	ID string `json:"id"`
	// Status is the current lifecycle state.
	Status Status `json:"status"`
	// Hypervisor is the backend selected for this instance.
	Hypervisor Hypervisor `json:"hypervisor"`
	// Allocation is the planned resource envelope.
	Allocation Allocation `json:"allocation"`
	// RecoveryAttempts counts the full pipeline restarts consumed so far.
	RecoveryAttempts int `json:"recovery_attempts"`
	// LastError is the last fault kind and message, nil when healthy.
	LastError *Fault `json:"last_error,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	ReadyAt      *time.Time `json:"ready_at,omitempty"`
	TerminatedAt *time.Time `json:"terminated_at,omitempty"`
}

// NewVMInstance returns an instance in the Requested state with a fresh ID.
func NewVMInstance() *VMInstance {
	return &VMInstance{
		ID:        uuid.NewString(),
		Status:    StatusRequested,
		CreatedAt: time.Now().UTC(),
	}
}

// Endpoint is the address at which the workload is reachable once ready.
func (i *VMInstance) Endpoint() string {
	return fmt.Sprintf("http://localhost:%d", i.Allocation.HostPort)
}

// SetFault records the fault derived from the given kind and error.
func (i *VMInstance) SetFault(kind, message string) {
	i.LastError = &Fault{Kind: kind, Message: message}
}

// ClearFault wipes the recorded fault after a successful recovery.
func (i *VMInstance) ClearFault() {
	i.LastError = nil
}
