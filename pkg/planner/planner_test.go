package planner_test

import (
	"context"
	"testing"

	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/planner"
	"luna-vmm/pkg/planner/netport"

	g "github.com/onsi/gomega"
)

func TestPlanMemoryMB_quarterOfHost(t *testing.T) {
	g.RegisterTestingT(t)

	mem := planner.PlanMemoryMB(8192, models.TierMedium)

	g.Expect(mem).To(g.Equal(int64(2048)))
}

func TestPlanMemoryMB_clamped(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(planner.PlanMemoryMB(0, models.TierMedium)).To(g.Equal(int64(1024)))
	g.Expect(planner.PlanMemoryMB(2048, models.TierMedium)).To(g.Equal(int64(1024)))
	g.Expect(planner.PlanMemoryMB(65536, models.TierMedium)).To(g.Equal(int64(4096)))
	g.Expect(planner.PlanMemoryMB(1<<40, models.TierHeavy)).To(g.Equal(int64(4096)))
}

func TestPlanMemoryMB_tierBias(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(planner.PlanMemoryMB(16384, models.TierLight)).To(g.Equal(int64(2048)))
	g.Expect(planner.PlanMemoryMB(16384, models.TierMedium)).To(g.Equal(int64(4096)))
	g.Expect(planner.PlanMemoryMB(8192, models.TierHeavy)).To(g.Equal(int64(3277)))
}

func TestPlanVCPU(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(planner.PlanVCPU(1)).To(g.Equal(1))
	g.Expect(planner.PlanVCPU(4)).To(g.Equal(2))
	g.Expect(planner.PlanVCPU(32)).To(g.Equal(4))
}

func TestPlan_happyPath(t *testing.T) {
	g.RegisterTestingT(t)

	alloc := netport.NewWithProbe(8080, 8100, func(int) bool { return true })
	p := planner.New(alloc)

	allocation, err := p.Plan(context.Background(), models.HostCapacity{
		TotalMemoryMB: 8192,
		CPUCores:      4,
	}, models.TierMedium)

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(allocation.MemoryMB).To(g.Equal(int64(2048)))
	g.Expect(allocation.VCPU).To(g.Equal(2))
	g.Expect(allocation.HostPort).To(g.Equal(8080))
}

func TestPlan_portRangeExhausted(t *testing.T) {
	g.RegisterTestingT(t)

	alloc := netport.NewWithProbe(8080, 8100, func(int) bool { return false })
	p := planner.New(alloc)

	_, err := p.Plan(context.Background(), models.HostCapacity{TotalMemoryMB: 8192, CPUCores: 4}, models.TierMedium)

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.KindOf(err)).To(g.Equal(errors.FaultResourceExhaustion))
}
