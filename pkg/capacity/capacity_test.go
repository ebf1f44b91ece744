package capacity_test

import (
	"testing"

	"luna-vmm/pkg/capacity"
	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/ports"

	g "github.com/onsi/gomega"
)

func TestAcquire_rejectsBeyondLimit(t *testing.T) {
	g.RegisterTestingT(t)

	limiter := capacity.New(2)

	slots := make([]ports.Slot, 0, 2)

	for i := 0; i < 2; i++ {
		slot, err := limiter.Acquire()
		g.Expect(err).NotTo(g.HaveOccurred())
		slots = append(slots, slot)
	}

	_, err := limiter.Acquire()
	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.KindOf(err)).To(g.Equal(errors.FaultCapacityExceeded))

	slots[0].Release()

	_, err = limiter.Acquire()
	g.Expect(err).NotTo(g.HaveOccurred())
}

func TestRelease_isIdempotent(t *testing.T) {
	g.RegisterTestingT(t)

	limiter := capacity.New(1)

	slot, err := limiter.Acquire()
	g.Expect(err).NotTo(g.HaveOccurred())

	slot.Release()
	slot.Release()

	next, err := limiter.Acquire()
	g.Expect(err).NotTo(g.HaveOccurred())

	// The double release must not have freed a second slot.
	_, err = limiter.Acquire()
	g.Expect(err).To(g.HaveOccurred())

	next.Release()
}
