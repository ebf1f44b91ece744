package shared_test

import (
	"os/exec"
	"testing"
	"time"

	g "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"luna-vmm/pkg/hypervisor/shared"
)

func startSleeper(t *testing.T, seconds string) *exec.Cmd {
	t.Helper()

	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep binary not available")
	}

	cmd := exec.Command("sleep", seconds)
	g.Expect(cmd.Start()).To(g.Succeed())

	return cmd
}

func TestProcessAlive_LiveProcess(t *testing.T) {
	g.RegisterTestingT(t)

	cmd := startSleeper(t, "30")

	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	g.Expect(shared.ProcessAlive(cmd.Process.Pid)).To(g.BeTrue())
}

func TestProcessAlive_ExitedProcess(t *testing.T) {
	g.RegisterTestingT(t)

	cmd := startSleeper(t, "0")
	g.Expect(cmd.Wait()).To(g.Succeed())

	g.Expect(shared.ProcessAlive(cmd.Process.Pid)).To(g.BeFalse())
}

func TestWaitForExit(t *testing.T) {
	g.RegisterTestingT(t)

	cmd := startSleeper(t, "0.2")

	go func() { _ = cmd.Wait() }()

	g.Expect(shared.WaitForExit(cmd.Process.Pid, 5*time.Second)).To(g.BeTrue())
}

func TestWaitForExit_GracePeriodSpent(t *testing.T) {
	g.RegisterTestingT(t)

	cmd := startSleeper(t, "30")

	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	g.Expect(shared.WaitForExit(cmd.Process.Pid, 300*time.Millisecond)).To(g.BeFalse())
}

func TestPIDFileRoundTrip(t *testing.T) {
	g.RegisterTestingT(t)

	fs := afero.NewMemMapFs()

	g.Expect(shared.PIDWriteToFile(4242, "/state/vm/pid", fs)).To(g.Succeed())

	pid, err := shared.PIDReadFromFile("/state/vm/pid", fs)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(pid).To(g.Equal(4242))
}
