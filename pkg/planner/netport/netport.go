// Package netport allocates host ports for guest forwarding by probing each
// candidate in the configured range for liveness. The allocator is the single
// owner of the shared port range: a reserved port is not considered free again
// until its instance reaches a terminal state and releases it.
package netport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"luna-vmm/pkg/errors"
)

// probeFn reports whether the port can be bound on the host right now.
type probeFn func(port int) bool

type Allocator struct {
	start int
	end   int
	probe probeFn

	mu       sync.Mutex
	reserved map[int]struct{}
}

func New(start, end int) *Allocator {
	return &Allocator{
		start:    start,
		end:      end,
		probe:    probeTCP,
		reserved: map[int]struct{}{},
	}
}

// NewWithProbe is used by tests to inject a fake liveness probe.
func NewWithProbe(start, end int, probe func(port int) bool) *Allocator {
	a := New(start, end)
	a.probe = probe

	return a
}

// Reserve returns the first free port in the range and marks it reserved.
func (a *Allocator) Reserve(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for port := a.start; port <= a.end; port++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if _, taken := a.reserved[port]; taken {
			continue
		}

		if !a.probe(port) {
			continue
		}

		a.reserved[port] = struct{}{}

		return port, nil
	}

	return 0, errors.ResourceExhaustionError{
		Resource: "port",
		Detail:   fmt.Sprintf("no free port in range %d-%d", a.start, a.end),
	}
}

// Release frees the port for reuse. Releasing an unreserved port is a no-op.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.reserved, port)
}

// Verify re-probes a reserved port. A foreign process binding the port after
// reservation surfaces here as a port conflict.
func (a *Allocator) Verify(port int) error {
	if a.probe(port) {
		return nil
	}

	return errors.PortConflictError{Port: port}
}

// Reserved reports whether the port is currently held by an instance.
func (a *Allocator) Reserved(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, taken := a.reserved[port]

	return taken
}

func probeTCP(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}

	listener.Close()

	return true
}
