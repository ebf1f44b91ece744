package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"luna-vmm/pkg/history"
	"luna-vmm/pkg/models"

	g "github.com/onsi/gomega"
)

func TestRecord_flushesTerminalInstance(t *testing.T) {
	g.RegisterTestingT(t)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	g.Expect(err).NotTo(g.HaveOccurred())

	defer store.Close()

	instance := models.NewVMInstance()
	instance.Status = models.StatusFailed
	instance.Hypervisor = models.HypervisorQEMUKVM
	instance.Allocation = models.Allocation{MemoryMB: 2048, VCPU: 2, HostPort: 8080}
	instance.RecoveryAttempts = 5
	instance.SetFault("recovery_exhausted", "five consecutive unresolvable faults")

	now := time.Now().UTC()
	instance.TerminatedAt = &now

	g.Expect(store.Record(context.Background(), instance)).To(g.Succeed())

	entries, err := store.List(context.Background())
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(entries).To(g.HaveLen(1))
	g.Expect(entries[0].ID).To(g.Equal(instance.ID))
	g.Expect(entries[0].Status).To(g.Equal(models.StatusFailed))
	g.Expect(entries[0].RecoveryAttempts).To(g.Equal(5))
	g.Expect(entries[0].LastErrorKind).To(g.Equal("recovery_exhausted"))
}

func TestRecord_upsertsSameInstance(t *testing.T) {
	g.RegisterTestingT(t)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	g.Expect(err).NotTo(g.HaveOccurred())

	defer store.Close()

	instance := models.NewVMInstance()
	instance.Status = models.StatusTerminated

	g.Expect(store.Record(context.Background(), instance)).To(g.Succeed())

	instance.RecoveryAttempts = 1
	g.Expect(store.Record(context.Background(), instance)).To(g.Succeed())

	entries, err := store.List(context.Background())
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(entries).To(g.HaveLen(1))
	g.Expect(entries[0].RecoveryAttempts).To(g.Equal(1))
}
