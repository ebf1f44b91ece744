package provision

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"luna-vmm/pkg/defaults"
	"luna-vmm/pkg/models"
)

// Definition is the on-disk VM definition artifact written at provisioning
// time and read back by the hypervisor driver at start time. Every field is
// re-derivable from the VMInstance it was written for.
type Definition struct {
	InstanceID string            `yaml:"instance_id"`
	Hypervisor models.Hypervisor `yaml:"hypervisor"`
	Allocation models.Allocation `yaml:"allocation"`
	GuestPort  int               `yaml:"guest_port"`
	ImagePath  string            `yaml:"image_path"`
}

// DefinitionFromInstance derives the definition artifact for an instance.
func DefinitionFromInstance(instance *models.VMInstance, imagePath string) Definition {
	return Definition{
		InstanceID: instance.ID,
		Hypervisor: instance.Hypervisor,
		Allocation: instance.Allocation,
		GuestPort:  defaults.GuestAgentPort,
		ImagePath:  imagePath,
	}
}

// DefinitionPath returns the definition location for an instance id.
func DefinitionPath(stateRoot, instanceID string) string {
	return filepath.Join(stateRoot, instanceID, "definition.yaml")
}

// WriteDefinition materializes the definition as YAML.
func WriteDefinition(fs afero.Fs, path string, def Definition) error {
	out, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshalling vm definition: %w", err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), defaults.DataDirPerm); err != nil {
		return fmt.Errorf("creating definition directory: %w", err)
	}

	if err := afero.WriteFile(fs, path, out, defaults.DataFilePerm); err != nil {
		return fmt.Errorf("writing vm definition %s: %w", path, err)
	}

	return nil
}

// ListDefinitions returns every persisted definition under the state root.
// Entries without a definition artifact are skipped.
func ListDefinitions(fs afero.Fs, stateRoot string) ([]Definition, error) {
	entries, err := afero.ReadDir(fs, stateRoot)
	if err != nil {
		return nil, fmt.Errorf("reading state root %s: %w", stateRoot, err)
	}

	defs := []Definition{}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		def, err := LoadDefinition(fs, DefinitionPath(stateRoot, entry.Name()))
		if err != nil {
			continue
		}

		defs = append(defs, def)
	}

	return defs, nil
}

// LoadDefinition reads a definition back from disk.
func LoadDefinition(fs afero.Fs, path string) (Definition, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return Definition{}, fmt.Errorf("reading vm definition %s: %w", path, err)
	}

	def := Definition{}
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return Definition{}, fmt.Errorf("unmarshalling vm definition %s: %w", path, err)
	}

	return def, nil
}
