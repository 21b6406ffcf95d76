package supervisor

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTerminateKillsChildWithinGrace(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	start := time.Now()
	Terminate(cmd.Process.Pid, 50*1000) // 50ms grace

	select {
	case <-done:
		require.Less(t, time.Since(start), 2*time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("child was not terminated within grace + margin")
	}
}

func TestTerminateZeroGraceSkipsSleep(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	start := time.Now()
	Terminate(cmd.Process.Pid, 0)

	select {
	case <-done:
		require.Less(t, time.Since(start), time.Second)
	case <-time.After(time.Second):
		t.Fatal("child was not terminated promptly with zero grace")
	}
}
