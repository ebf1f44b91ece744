package hyperv

import (
	"fmt"

	"github.com/spf13/afero"

	"luna-vmm/pkg/hypervisor/shared"
)

func NewState(instanceID, stateDir string, fs afero.Fs) *State {
	return &State{
		stateRoot: fmt.Sprintf("%s/%s", stateDir, instanceID),
		fs:        fs,
	}
}

type State struct {
	stateRoot string
	fs        afero.Fs
}

func (s *State) Root() string {
	return s.stateRoot
}

func (s *State) Delete() error {
	return s.fs.RemoveAll(s.stateRoot)
}

func (s *State) PIDPath() string {
	return fmt.Sprintf("%s/%s", s.stateRoot, "hyperv.pid")
}

func (s *State) PID() (int, error) {
	return shared.PIDReadFromFile(s.PIDPath(), s.fs)
}

func (s *State) SetPid(pid int) error {
	return shared.PIDWriteToFile(pid, s.PIDPath(), s.fs)
}

func (s *State) StdoutPath() string {
	return fmt.Sprintf("%s/%s", s.stateRoot, "hyperv.stdout")
}

func (s *State) StderrPath() string {
	return fmt.Sprintf("%s/%s", s.stateRoot, "hyperv.stderr")
}
