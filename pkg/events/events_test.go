package events_test

import (
	"context"
	"testing"

	"luna-vmm/pkg/events"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/ports"

	g "github.com/onsi/gomega"
)

func TestPublish_preservesOrder(t *testing.T) {
	g.RegisterTestingT(t)

	bus := events.NewBus()
	ctx := context.Background()

	ch, cancel := bus.Subscribe(ctx)
	defer cancel()

	statuses := []models.Status{models.StatusProvisioning, models.StatusStarting, models.StatusReady}
	for _, status := range statuses {
		bus.Publish(ctx, ports.ProgressEvent{Status: status, Percent: status.Percent()})
	}

	lastPercent := -1

	for _, want := range statuses {
		event := <-ch
		g.Expect(event.Status).To(g.Equal(want))
		g.Expect(event.Percent).To(g.BeNumerically(">=", lastPercent))
		lastPercent = event.Percent
	}
}

func TestSubscribe_cancelClosesChannel(t *testing.T) {
	g.RegisterTestingT(t)

	bus := events.NewBus()

	ch, cancel := bus.Subscribe(context.Background())
	cancel()

	_, open := <-ch
	g.Expect(open).To(g.BeFalse())

	// Publishing after cancel must not panic.
	bus.Publish(context.Background(), ports.ProgressEvent{Status: models.StatusReady})
}
