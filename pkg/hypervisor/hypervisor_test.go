package hypervisor_test

import (
	"testing"

	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/hypervisor"
	"luna-vmm/pkg/models"

	g "github.com/onsi/gomega"
)

func probeAllowing(allowed ...models.Hypervisor) hypervisor.Probes {
	return hypervisor.ProbeFunc(func(h models.Hypervisor) bool {
		for _, a := range allowed {
			if a == h {
				return true
			}
		}

		return false
	})
}

func TestSelect_windowsPrefersHyperV(t *testing.T) {
	g.RegisterTestingT(t)

	order, err := hypervisor.Select("windows", probeAllowing(models.HypervisorHyperV, models.HypervisorVirtualBox))

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(order).To(g.Equal([]models.Hypervisor{models.HypervisorHyperV, models.HypervisorVirtualBox}))
}

func TestSelect_windowsFallsBackToVirtualBox(t *testing.T) {
	g.RegisterTestingT(t)

	order, err := hypervisor.Select("windows", probeAllowing(models.HypervisorVirtualBox))

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(order).To(g.Equal([]models.Hypervisor{models.HypervisorVirtualBox}))
}

func TestSelect_darwinSingleOption(t *testing.T) {
	g.RegisterTestingT(t)

	order, err := hypervisor.Select("darwin", probeAllowing(models.HypervisorVZ))

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(order).To(g.Equal([]models.Hypervisor{models.HypervisorVZ}))
}

func TestSelect_linuxPrefersKVM(t *testing.T) {
	g.RegisterTestingT(t)

	order, err := hypervisor.Select("linux", probeAllowing(models.HypervisorQEMUKVM, models.HypervisorQEMUTCG))

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(order[0]).To(g.Equal(models.HypervisorQEMUKVM))
}

func TestSelect_noUsableBackend(t *testing.T) {
	g.RegisterTestingT(t)

	_, err := hypervisor.Select("linux", probeAllowing())

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.KindOf(err)).To(g.Equal(errors.FaultHypervisorUnavailable))
}
