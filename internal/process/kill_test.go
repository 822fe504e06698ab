package process

// Notes:
// - Only an unused PID is exercised. PID 0 would target our own process group
//   and real PIDs would kill unrelated processes. Reaping of a launched Chrome
//   is covered by the browser integration tests.

import (
	"os/exec"
	"runtime"
	"testing"
	"time"
)

func TestKillProcessGroup_UnknownPID(t *testing.T) {
	t.Parallel()

	KillProcessGroup(999999999)
}

func TestKillProcessGroup_ReapsChild(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("process groups are unix only")
	}

	cmd := exec.Command("sleep", "30")
	setOwnGroup(cmd)
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	KillProcessGroup(cmd.Process.Pid)

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected the child to exit with a signal")
		}
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("child still running after KillProcessGroup")
	}
}
