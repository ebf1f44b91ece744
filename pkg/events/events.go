// Package events carries the ordered progress stream from the orchestrator to
// UI and telemetry consumers. Publishing is serialized so subscribers observe
// state transitions in the order they occurred.
package events

import (
	"context"
	"sync"

	"luna-vmm/pkg/log"
	"luna-vmm/pkg/ports"
)

const subscriberBuffer = 64

type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan ports.ProgressEvent
	nextID      int
}

func NewBus() *Bus {
	return &Bus{subscribers: map[int]chan ports.ProgressEvent{}}
}

// Publish delivers the event to every subscriber. A subscriber that has
// fallen subscriberBuffer events behind is dropped rather than allowed to
// stall the pipeline.
func (b *Bus) Publish(ctx context.Context, event ports.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			log.GetLogger(ctx).WithField("subscriber", id).Warn("dropping slow progress subscriber")
			close(ch)
			delete(b.subscribers, id)
		}
	}
}

// Subscribe registers a consumer. The returned cancel func must be called to
// release the subscription; the channel is closed afterwards.
func (b *Bus) Subscribe(_ context.Context) (<-chan ports.ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan ports.ProgressEvent, subscriberBuffer)
	b.subscribers[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if sub, ok := b.subscribers[id]; ok {
			close(sub)
			delete(b.subscribers, id)
		}
	}

	return ch, cancel
}
