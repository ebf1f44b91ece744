package models_test

import (
	"testing"

	g "github.com/onsi/gomega"

	"luna-vmm/pkg/models"
)

func TestStatus_HappyPathTransitions(t *testing.T) {
	g.RegisterTestingT(t)

	path := []models.Status{
		models.StatusRequested,
		models.StatusProvisioning,
		models.StatusStarting,
		models.StatusHealthChecking,
		models.StatusReady,
		models.StatusRunning,
		models.StatusStopping,
		models.StatusTerminated,
	}

	for i := 0; i < len(path)-1; i++ {
		g.Expect(path[i].CanTransition(path[i+1])).To(g.BeTrue(),
			"expected %s -> %s to be legal", path[i], path[i+1])
	}
}

func TestStatus_TerminalStatesHaveNoEdges(t *testing.T) {
	g.RegisterTestingT(t)

	all := []models.Status{
		models.StatusRequested, models.StatusProvisioning, models.StatusStarting,
		models.StatusHealthChecking, models.StatusReady, models.StatusRunning,
		models.StatusRecovering, models.StatusStopping, models.StatusTerminated,
		models.StatusFailed,
	}

	for _, next := range all {
		g.Expect(models.StatusTerminated.CanTransition(next)).To(g.BeFalse())
		g.Expect(models.StatusFailed.CanTransition(next)).To(g.BeFalse())
	}

	g.Expect(models.StatusTerminated.Terminal()).To(g.BeTrue())
	g.Expect(models.StatusFailed.Terminal()).To(g.BeTrue())
	g.Expect(models.StatusRunning.Terminal()).To(g.BeFalse())
}

func TestStatus_StopInterruptsAnyNonTerminalState(t *testing.T) {
	g.RegisterTestingT(t)

	interruptible := []models.Status{
		models.StatusRequested, models.StatusProvisioning, models.StatusStarting,
		models.StatusHealthChecking, models.StatusReady, models.StatusRunning,
		models.StatusRecovering,
	}

	for _, status := range interruptible {
		g.Expect(status.CanTransition(models.StatusStopping)).To(g.BeTrue(),
			"expected %s -> stopping to be legal", status)
	}
}

func TestStatus_IllegalJumps(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(models.StatusRequested.CanTransition(models.StatusReady)).To(g.BeFalse())
	g.Expect(models.StatusProvisioning.CanTransition(models.StatusRunning)).To(g.BeFalse())
	g.Expect(models.StatusReady.CanTransition(models.StatusProvisioning)).To(g.BeFalse())
	g.Expect(models.StatusRunning.CanTransition(models.StatusFailed)).To(g.BeFalse())
	g.Expect(models.StatusStopping.CanTransition(models.StatusRecovering)).To(g.BeFalse())
}

func TestStatus_RecoveringEdges(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(models.StatusRecovering.CanTransition(models.StatusProvisioning)).To(g.BeTrue())
	g.Expect(models.StatusRecovering.CanTransition(models.StatusFailed)).To(g.BeTrue())
	g.Expect(models.StatusRecovering.CanTransition(models.StatusReady)).To(g.BeFalse())
}

func TestStatus_PercentNeverDecreasesAlongHappyPath(t *testing.T) {
	g.RegisterTestingT(t)

	path := []models.Status{
		models.StatusRequested,
		models.StatusProvisioning,
		models.StatusStarting,
		models.StatusHealthChecking,
		models.StatusReady,
		models.StatusRunning,
	}

	for i := 1; i < len(path); i++ {
		g.Expect(path[i].Percent()).To(g.BeNumerically(">", path[i-1].Percent()))
	}

	g.Expect(models.StatusRunning.Percent()).To(g.Equal(100))
}

func TestNewVMInstance(t *testing.T) {
	g.RegisterTestingT(t)

	instance := models.NewVMInstance()
	g.Expect(instance.ID).NotTo(g.BeEmpty())
	g.Expect(instance.Status).To(g.Equal(models.StatusRequested))
	g.Expect(instance.CreatedAt.IsZero()).To(g.BeFalse())

	other := models.NewVMInstance()
	g.Expect(other.ID).NotTo(g.Equal(instance.ID))
}
