package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInstanceIDRequired = errors.New("id for vm instance is required")
	ErrAllocationRequired = errors.New("a resource allocation is required")
	ErrImagePathRequired  = errors.New("a vm image path is required")
	ErrInstanceNotFound   = errors.New("vm instance not found")
	ErrNoProcess          = errors.New("vm instance has no running process")
)

// FaultKind classifies a pipeline fault for recovery dispatch and diagnostics.
type FaultKind string

const (
	FaultNone                  FaultKind = ""
	FaultProvisioning          FaultKind = "provisioning"
	FaultHypervisorUnavailable FaultKind = "hypervisor_unavailable"
	FaultStartupFailure        FaultKind = "startup_failure"
	FaultHealthTimeout         FaultKind = "health_timeout"
	FaultPortConflict          FaultKind = "port_conflict"
	FaultResourceExhaustion    FaultKind = "resource_exhaustion"
	FaultPermission            FaultKind = "permission"
	FaultRecoveryExhausted     FaultKind = "recovery_exhausted"
	FaultCapacityExceeded      FaultKind = "capacity_exceeded"
	FaultUnknown               FaultKind = "unknown"
)

// faultError is implemented by every error in the pipeline taxonomy.
type faultError interface {
	error
	Kind() FaultKind
}

// KindOf returns the fault kind of err, or FaultUnknown if err carries none.
func KindOf(err error) FaultKind {
	if err == nil {
		return FaultNone
	}

	var fault faultError
	if errors.As(err, &fault) {
		return fault.Kind()
	}

	return FaultUnknown
}

// ProvisioningError indicates the disk image or VM definition could not be
// materialized.
type ProvisioningError struct {
	Path  string
	Cause error
}

func (e ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning vm image %s: %v", e.Path, e.Cause)
}

func (e ProvisioningError) Unwrap() error { return e.Cause }

func (e ProvisioningError) Kind() FaultKind { return FaultProvisioning }

// HypervisorUnavailableError indicates no virtualization backend passed its
// capability probe on this host.
type HypervisorUnavailableError struct {
	Platform string
}

func (e HypervisorUnavailableError) Error() string {
	return fmt.Sprintf("no usable hypervisor found on platform %s", e.Platform)
}

func (e HypervisorUnavailableError) Kind() FaultKind { return FaultHypervisorUnavailable }

// StartupFailureError indicates the VM process could not be spawned, or exited
// before the readiness probe reported success.
type StartupFailureError struct {
	Hypervisor string
	Cause      error
}

func (e StartupFailureError) Error() string {
	return fmt.Sprintf("starting vm via %s: %v", e.Hypervisor, e.Cause)
}

func (e StartupFailureError) Unwrap() error { return e.Cause }

func (e StartupFailureError) Kind() FaultKind { return FaultStartupFailure }

// HealthTimeoutError indicates the readiness probe did not report ready within
// the configured window.
type HealthTimeoutError struct {
	Endpoint string
	Waited   string
}

func (e HealthTimeoutError) Error() string {
	return fmt.Sprintf("vm at %s not ready after %s", e.Endpoint, e.Waited)
}

func (e HealthTimeoutError) Kind() FaultKind { return FaultHealthTimeout }

// PortConflictError indicates the allocated host port was taken by the time
// the VM tried to bind it.
type PortConflictError struct {
	Port int
}

func (e PortConflictError) Error() string {
	return fmt.Sprintf("host port %d is already in use", e.Port)
}

func (e PortConflictError) Kind() FaultKind { return FaultPortConflict }

// ResourceExhaustionError indicates the host could not satisfy the requested
// allocation (no free port in range, or insufficient memory).
type ResourceExhaustionError struct {
	Resource string
	Detail   string
}

func (e ResourceExhaustionError) Error() string {
	return fmt.Sprintf("host %s exhausted: %s", e.Resource, e.Detail)
}

func (e ResourceExhaustionError) Kind() FaultKind { return FaultResourceExhaustion }

// PermissionError indicates a state path or device was not accessible.
type PermissionError struct {
	Path  string
	Cause error
}

func (e PermissionError) Error() string {
	return fmt.Sprintf("permission denied on %s: %v", e.Path, e.Cause)
}

func (e PermissionError) Unwrap() error { return e.Cause }

func (e PermissionError) Kind() FaultKind { return FaultPermission }

// RecoveryExhaustedError is the only pipeline error surfaced to callers: the
// recovery budget was spent, or no strategy could remediate the last fault.
type RecoveryExhaustedError struct {
	InstanceID string
	Attempts   int
	LastFault  FaultKind
	LastError  string
}

func (e RecoveryExhaustedError) Error() string {
	return fmt.Sprintf("vm %s failed permanently after %d recovery attempts (last fault %s: %s)",
		e.InstanceID, e.Attempts, e.LastFault, e.LastError)
}

func (e RecoveryExhaustedError) Kind() FaultKind { return FaultRecoveryExhausted }

// CapacityExceededError is returned synchronously when the instance pool is
// full. It bypasses recovery entirely since no instance state was created.
type CapacityExceededError struct {
	Limit int
}

func (e CapacityExceededError) Error() string {
	return fmt.Sprintf("vm instance limit of %d reached, try again later", e.Limit)
}

func (e CapacityExceededError) Kind() FaultKind { return FaultCapacityExceeded }
