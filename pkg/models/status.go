package models

// Status is the lifecycle state of a VMInstance.
type Status string

const (
	StatusRequested      Status = "requested"
	StatusProvisioning   Status = "provisioning"
	StatusStarting       Status = "starting"
	StatusHealthChecking Status = "health_checking"
	StatusReady          Status = "ready"
	StatusRunning        Status = "running"
	StatusRecovering     Status = "recovering"
	StatusStopping       Status = "stopping"
	StatusTerminated     Status = "terminated"
	StatusFailed         Status = "failed"
)

// validTransitions is the closed transition table for the instance state
// machine. A caller-initiated stop may interrupt any non-terminal state.
var validTransitions = map[Status][]Status{
	StatusRequested:      {StatusProvisioning, StatusStopping},
	StatusProvisioning:   {StatusStarting, StatusRecovering, StatusStopping},
	StatusStarting:       {StatusHealthChecking, StatusRecovering, StatusStopping},
	StatusHealthChecking: {StatusReady, StatusRecovering, StatusStopping},
	StatusReady:          {StatusRunning, StatusStopping},
	StatusRunning:        {StatusStopping},
	StatusRecovering:     {StatusProvisioning, StatusFailed, StatusStopping},
	StatusStopping:       {StatusTerminated},
	StatusTerminated:     {},
	StatusFailed:         {},
}

// CanTransition reports whether moving from s to next is a legal edge of the
// state machine.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// Terminal reports whether s is an end state.
func (s Status) Terminal() bool {
	return s == StatusTerminated || s == StatusFailed
}

// Live reports whether the instance is expected to own a process handle in
// this state.
func (s Status) Live() bool {
	switch s {
	case StatusStarting, StatusHealthChecking, StatusReady, StatusRunning, StatusRecovering:
		return true
	default:
		return false
	}
}

// Percent maps a status to its progress share of one pipeline run. Consumers
// may see the same percent twice but never a decreasing one.
func (s Status) Percent() int {
	switch s {
	case StatusRequested:
		return 0
	case StatusProvisioning:
		return 15
	case StatusStarting:
		return 40
	case StatusHealthChecking:
		return 60
	case StatusReady:
		return 90
	case StatusRunning, StatusTerminated, StatusFailed:
		return 100
	default:
		return 0
	}
}
