// Package provision ensures the VM disk image exists locally. The bundled
// source artifact is a gzip compressed raw image; first run extracts it next
// to a sha256 sidecar used as the integrity check on later runs. Extraction is
// guarded by a cross-process file lock so two lunad processes cannot race.
package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"

	"luna-vmm/pkg/defaults"
	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/log"
	"luna-vmm/pkg/models"
)

type Provisioner struct {
	fs         afero.Fs
	sourcePath string
	lockPath   string
	stateRoot  string
}

func New(fs afero.Fs, sourcePath, lockPath, stateRoot string) *Provisioner {
	return &Provisioner{
		fs:         fs,
		sourcePath: sourcePath,
		lockPath:   lockPath,
		stateRoot:  stateRoot,
	}
}

// EnsureImage extracts the bundled source image to targetPath unless a valid
// image is already present. Calling it on a valid image performs no I/O
// beyond the integrity check.
func (p *Provisioner) EnsureImage(ctx context.Context, targetPath string) error {
	logger := log.GetLogger(ctx).WithField("service", "provisioner")

	if p.imageValid(targetPath) {
		logger.WithField("image", targetPath).Debug("image already provisioned")

		return nil
	}

	lock := flock.New(p.lockPath)

	locked, err := lock.TryLockContext(ctx, defaults.ProvisionLockRetry)
	if err != nil {
		return errors.ProvisioningError{Path: targetPath, Cause: fmt.Errorf("acquiring extraction lock: %w", err)}
	}

	if !locked {
		return errors.ProvisioningError{Path: targetPath, Cause: fmt.Errorf("extraction lock %s held elsewhere", p.lockPath)}
	}

	defer lock.Unlock()

	// Another process may have finished the extraction while we waited.
	if p.imageValid(targetPath) {
		return nil
	}

	logger.WithField("image", targetPath).Info("extracting bundled vm image")

	if err := p.extract(targetPath); err != nil {
		if os.IsPermission(err) {
			return errors.PermissionError{Path: targetPath, Cause: err}
		}

		return errors.ProvisioningError{Path: targetPath, Cause: err}
	}

	return nil
}

// Invalidate removes the image and its sidecar so the next EnsureImage
// re-extracts from scratch.
func (p *Provisioner) Invalidate(_ context.Context, targetPath string) error {
	if err := p.fs.RemoveAll(targetPath); err != nil {
		return fmt.Errorf("removing image %s: %w", targetPath, err)
	}

	if err := p.fs.RemoveAll(sidecarPath(targetPath)); err != nil {
		return fmt.Errorf("removing image sidecar: %w", err)
	}

	return nil
}

// MaterializeDefinition writes the persisted VM definition artifact for the
// instance. The artifact is fully re-derivable from the instance fields.
func (p *Provisioner) MaterializeDefinition(ctx context.Context, instance *models.VMInstance, imagePath string) error {
	def := DefinitionFromInstance(instance, imagePath)

	if err := WriteDefinition(p.fs, DefinitionPath(p.stateRoot, instance.ID), def); err != nil {
		return errors.ProvisioningError{Path: imagePath, Cause: err}
	}

	log.GetLogger(ctx).WithField("vm", instance.ID).Debug("materialized vm definition")

	return nil
}

func (p *Provisioner) imageValid(targetPath string) bool {
	info, err := p.fs.Stat(targetPath)
	if err != nil || info.Size() == 0 {
		return false
	}

	want, err := afero.ReadFile(p.fs, sidecarPath(targetPath))
	if err != nil {
		return false
	}

	got, err := p.digest(targetPath)
	if err != nil {
		return false
	}

	return got == strings.TrimSpace(string(want))
}

func (p *Provisioner) extract(targetPath string) error {
	if err := p.fs.MkdirAll(filepath.Dir(targetPath), defaults.DataDirPerm); err != nil {
		return fmt.Errorf("creating image directory: %w", err)
	}

	source, err := p.fs.Open(p.sourcePath)
	if err != nil {
		return fmt.Errorf("opening bundled image %s: %w", p.sourcePath, err)
	}

	defer source.Close()

	uncompressed, err := gzip.NewReader(source)
	if err != nil {
		return fmt.Errorf("reading bundled image %s: %w", p.sourcePath, err)
	}

	defer uncompressed.Close()

	partial := targetPath + ".partial"

	target, err := p.fs.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, defaults.DataFilePerm)
	if err != nil {
		return fmt.Errorf("creating image file %s: %w", partial, err)
	}

	if _, err := io.Copy(target, uncompressed); err != nil {
		target.Close()

		return fmt.Errorf("extracting image: %w", err)
	}

	if err := target.Close(); err != nil {
		return fmt.Errorf("closing image file: %w", err)
	}

	if err := p.fs.Rename(partial, targetPath); err != nil {
		return fmt.Errorf("moving image into place: %w", err)
	}

	digest, err := p.digest(targetPath)
	if err != nil {
		return fmt.Errorf("hashing extracted image: %w", err)
	}

	if err := afero.WriteFile(p.fs, sidecarPath(targetPath), []byte(digest+"\n"), defaults.DataFilePerm); err != nil {
		return fmt.Errorf("writing image sidecar: %w", err)
	}

	return nil
}

func (p *Provisioner) digest(path string) (string, error) {
	file, err := p.fs.Open(path)
	if err != nil {
		return "", err
	}

	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

func sidecarPath(targetPath string) string {
	return targetPath + ".sha256"
}
