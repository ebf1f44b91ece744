package netport_test

import (
	"context"
	"testing"

	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/planner/netport"

	g "github.com/onsi/gomega"
)

func TestReserve_skipsBusyPorts(t *testing.T) {
	g.RegisterTestingT(t)

	alloc := netport.NewWithProbe(8080, 8082, func(port int) bool { return port != 8080 })

	port, err := alloc.Reserve(context.Background())

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(port).To(g.Equal(8081))
}

func TestReserve_noTwoLiveInstancesSharePort(t *testing.T) {
	g.RegisterTestingT(t)

	alloc := netport.NewWithProbe(8080, 8082, func(int) bool { return true })

	seen := map[int]struct{}{}

	for i := 0; i < 3; i++ {
		port, err := alloc.Reserve(context.Background())
		g.Expect(err).NotTo(g.HaveOccurred())

		_, dup := seen[port]
		g.Expect(dup).To(g.BeFalse())
		seen[port] = struct{}{}
	}

	_, err := alloc.Reserve(context.Background())
	g.Expect(errors.KindOf(err)).To(g.Equal(errors.FaultResourceExhaustion))
}

func TestRelease_makesPortReusable(t *testing.T) {
	g.RegisterTestingT(t)

	alloc := netport.NewWithProbe(9000, 9000, func(int) bool { return true })

	port, err := alloc.Reserve(context.Background())
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(alloc.Reserved(port)).To(g.BeTrue())

	alloc.Release(port)
	g.Expect(alloc.Reserved(port)).To(g.BeFalse())

	again, err := alloc.Reserve(context.Background())
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(again).To(g.Equal(port))
}
