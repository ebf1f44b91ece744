package provision_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"

	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/models"
	"luna-vmm/pkg/provision"

	g "github.com/onsi/gomega"
)

const sourceImage = "/bundle/luna.img.gz"

func newProvisioner(t *testing.T, fs afero.Fs, payload []byte) *provision.Provisioner {
	t.Helper()

	var compressed bytes.Buffer

	writer := gzip.NewWriter(&compressed)
	if _, err := writer.Write(payload); err != nil {
		t.Fatal(err)
	}

	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	if err := afero.WriteFile(fs, sourceImage, compressed.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	return provision.New(fs, sourceImage, filepath.Join(t.TempDir(), "extract.lock"), "/var/lib/luna")
}

func TestEnsureImage_extractsOnFirstRun(t *testing.T) {
	g.RegisterTestingT(t)

	fs := afero.NewMemMapFs()
	p := newProvisioner(t, fs, []byte("luna disk image payload"))

	err := p.EnsureImage(context.Background(), "/var/lib/luna/luna.img")

	g.Expect(err).NotTo(g.HaveOccurred())

	extracted, err := afero.ReadFile(fs, "/var/lib/luna/luna.img")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(extracted).To(g.Equal([]byte("luna disk image payload")))

	exists, _ := afero.Exists(fs, "/var/lib/luna/luna.img.sha256")
	g.Expect(exists).To(g.BeTrue())
}

func TestEnsureImage_idempotent(t *testing.T) {
	g.RegisterTestingT(t)

	fs := afero.NewMemMapFs()
	p := newProvisioner(t, fs, []byte("payload"))

	g.Expect(p.EnsureImage(context.Background(), "/var/lib/luna/luna.img")).To(g.Succeed())

	// Removing the bundled source proves the second call performs no
	// extraction work.
	g.Expect(fs.Remove(sourceImage)).To(g.Succeed())

	g.Expect(p.EnsureImage(context.Background(), "/var/lib/luna/luna.img")).To(g.Succeed())
}

func TestEnsureImage_missingSourceFails(t *testing.T) {
	g.RegisterTestingT(t)

	fs := afero.NewMemMapFs()
	p := provision.New(fs, "/bundle/missing.img.gz", filepath.Join(t.TempDir(), "extract.lock"), "/var/lib/luna")

	err := p.EnsureImage(context.Background(), "/var/lib/luna/luna.img")

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.KindOf(err)).To(g.Equal(errors.FaultProvisioning))
}

func TestEnsureImage_reextractsAfterInvalidate(t *testing.T) {
	g.RegisterTestingT(t)

	fs := afero.NewMemMapFs()
	p := newProvisioner(t, fs, []byte("payload"))
	ctx := context.Background()

	g.Expect(p.EnsureImage(ctx, "/var/lib/luna/luna.img")).To(g.Succeed())
	g.Expect(p.Invalidate(ctx, "/var/lib/luna/luna.img")).To(g.Succeed())

	exists, _ := afero.Exists(fs, "/var/lib/luna/luna.img")
	g.Expect(exists).To(g.BeFalse())

	g.Expect(p.EnsureImage(ctx, "/var/lib/luna/luna.img")).To(g.Succeed())
}

func TestEnsureImage_corruptImageDetected(t *testing.T) {
	g.RegisterTestingT(t)

	fs := afero.NewMemMapFs()
	p := newProvisioner(t, fs, []byte("payload"))
	ctx := context.Background()

	g.Expect(p.EnsureImage(ctx, "/var/lib/luna/luna.img")).To(g.Succeed())

	// Flip the image contents behind the provisioner's back.
	g.Expect(afero.WriteFile(fs, "/var/lib/luna/luna.img", []byte("garbage"), 0o644)).To(g.Succeed())

	g.Expect(p.EnsureImage(ctx, "/var/lib/luna/luna.img")).To(g.Succeed())

	restored, err := afero.ReadFile(fs, "/var/lib/luna/luna.img")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(restored).To(g.Equal([]byte("payload")))
}

func TestDefinition_roundTripsFromInstance(t *testing.T) {
	g.RegisterTestingT(t)

	fs := afero.NewMemMapFs()
	instance := models.NewVMInstance()
	instance.Hypervisor = models.HypervisorQEMUKVM
	instance.Allocation = models.Allocation{MemoryMB: 2048, VCPU: 2, HostPort: 8084}

	p := provision.New(fs, sourceImage, filepath.Join(t.TempDir(), "extract.lock"), "/var/lib/luna")

	g.Expect(p.MaterializeDefinition(context.Background(), instance, "/var/lib/luna/luna.img")).To(g.Succeed())

	def, err := provision.LoadDefinition(fs, provision.DefinitionPath("/var/lib/luna", instance.ID))

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(def.InstanceID).To(g.Equal(instance.ID))
	g.Expect(def.Hypervisor).To(g.Equal(models.HypervisorQEMUKVM))
	g.Expect(def.Allocation).To(g.Equal(instance.Allocation))
	g.Expect(def.ImagePath).To(g.Equal("/var/lib/luna/luna.img"))
}
