package recovery_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"luna-vmm/pkg/defaults"
	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/planner/netport"
	"luna-vmm/pkg/recovery"

	g "github.com/onsi/gomega"
)

type fakeImage struct {
	invalidated int
}

func (f *fakeImage) EnsureImage(context.Context, string) error { return nil }

func (f *fakeImage) Invalidate(context.Context, string) error {
	f.invalidated++

	return nil
}

func (f *fakeImage) MaterializeDefinition(context.Context, *models.VMInstance, string) error {
	return nil
}

type recordingStrategy struct {
	name     string
	resolves bool
	tried    *[]string
}

func (r *recordingStrategy) Name() string { return r.name }

func (r *recordingStrategy) Recover(context.Context, *models.VMInstance, errors.FaultKind) (bool, error) {
	*r.tried = append(*r.tried, r.name)

	return r.resolves, nil
}

func newChain(image *fakeImage, alloc *netport.Allocator) *recovery.Coordinator {
	return recovery.NewCoordinator(
		&recovery.PortConflict{Allocator: alloc},
		&recovery.ResourceShortage{Capacity: func() models.HostCapacity {
			return models.HostCapacity{AvailableMemoryMB: 1024}
		}},
		&recovery.Permission{Fs: afero.NewMemMapFs()},
		&recovery.Reinstall{Image: image, ImagePath: "/var/lib/luna/luna.img"},
	)
}

func TestRecover_strategiesTriedInOrder(t *testing.T) {
	g.RegisterTestingT(t)

	tried := []string{}

	chain := recovery.NewCoordinator(
		&recordingStrategy{name: "port_conflict", tried: &tried},
		&recordingStrategy{name: "resource_shortage", tried: &tried},
		&recordingStrategy{name: "permission", tried: &tried},
		&recordingStrategy{name: "reinstall", resolves: true, tried: &tried},
	)

	name, resolved := chain.Recover(context.Background(), models.NewVMInstance(), errors.FaultProvisioning)

	g.Expect(resolved).To(g.BeTrue())
	g.Expect(name).To(g.Equal("reinstall"))
	g.Expect(tried).To(g.Equal([]string{"port_conflict", "resource_shortage", "permission", "reinstall"}))
}

func TestRecover_stopsAtFirstResolution(t *testing.T) {
	g.RegisterTestingT(t)

	tried := []string{}

	chain := recovery.NewCoordinator(
		&recordingStrategy{name: "port_conflict", resolves: true, tried: &tried},
		&recordingStrategy{name: "resource_shortage", tried: &tried},
	)

	name, resolved := chain.Recover(context.Background(), models.NewVMInstance(), errors.FaultPortConflict)

	g.Expect(resolved).To(g.BeTrue())
	g.Expect(name).To(g.Equal("port_conflict"))
	g.Expect(tried).To(g.Equal([]string{"port_conflict"}))
}

func TestPortConflict_reassignsFreePort(t *testing.T) {
	g.RegisterTestingT(t)

	alloc := netport.NewWithProbe(8080, 8082, func(port int) bool { return port != 8080 })
	chain := newChain(&fakeImage{}, alloc)

	instance := models.NewVMInstance()
	instance.Allocation = models.Allocation{MemoryMB: 2048, VCPU: 2, HostPort: 8080}

	name, resolved := chain.Recover(context.Background(), instance, errors.FaultPortConflict)

	g.Expect(resolved).To(g.BeTrue())
	g.Expect(name).To(g.Equal("port_conflict"))
	g.Expect(instance.Allocation.HostPort).To(g.Equal(8081))
}

func TestResourceShortage_shrinksTowardFloor(t *testing.T) {
	g.RegisterTestingT(t)

	chain := newChain(&fakeImage{}, netport.NewWithProbe(8080, 8100, func(int) bool { return true }))

	instance := models.NewVMInstance()
	instance.Allocation.MemoryMB = 4096

	name, resolved := chain.Recover(context.Background(), instance, errors.FaultResourceExhaustion)

	g.Expect(resolved).To(g.BeTrue())
	g.Expect(name).To(g.Equal("resource_shortage"))
	g.Expect(instance.Allocation.MemoryMB).To(g.Equal(int64(2048)))
}

func TestResourceShortage_defersAtFloor(t *testing.T) {
	g.RegisterTestingT(t)

	chain := newChain(&fakeImage{}, netport.NewWithProbe(8080, 8100, func(int) bool { return true }))

	instance := models.NewVMInstance()
	instance.Allocation.MemoryMB = defaults.MinMemoryMB

	_, resolved := chain.Recover(context.Background(), instance, errors.FaultResourceExhaustion)

	g.Expect(resolved).To(g.BeFalse())
}

func TestReinstall_invalidatesImage(t *testing.T) {
	g.RegisterTestingT(t)

	image := &fakeImage{}
	chain := newChain(image, netport.NewWithProbe(8080, 8100, func(int) bool { return true }))

	_, resolved := chain.Recover(context.Background(), models.NewVMInstance(), errors.FaultProvisioning)

	g.Expect(resolved).To(g.BeTrue())
	g.Expect(image.invalidated).To(g.Equal(1))
}

func TestRecover_unresolvableFaultExhaustsChain(t *testing.T) {
	g.RegisterTestingT(t)

	chain := newChain(&fakeImage{}, netport.NewWithProbe(8080, 8100, func(int) bool { return true }))

	_, resolved := chain.Recover(context.Background(), models.NewVMInstance(), errors.FaultHypervisorUnavailable)

	g.Expect(resolved).To(g.BeFalse())
}
