package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lxc/confine/internal/cgroup"
)

func TestCleanupKillsResidentsAndRemovesDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "memory"), cgroup.DirMode))

	old := cgroup.MountRoot
	cgroup.MountRoot = root
	t.Cleanup(func() { cgroup.MountRoot = old })

	c := &cgroup.Controller{Name: "memory"}
	reg := cgroup.NewRegistry([]*cgroup.Controller{c}, "scope/cleanup-test")
	require.NoError(t, reg.CreateAll())

	procFile, err := os.Create(c.ProcFile())
	require.NoError(t, err)
	require.NoError(t, procFile.Close())

	// Spawn a real descendant and register it as cgroup-resident, the way
	// the kernel would after the launcher attached it.
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())

	require.NoError(t, os.WriteFile(c.ProcFile(), []byte(fmt.Sprintf("%d", cmd.Process.Pid)), 0o600))

	cleanup := NewCleanup(reg, nil)
	cleanup.Run()

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case <-waitErr:
	case <-time.After(2 * time.Second):
		t.Fatal("descendant process was not killed by cleanup")
	}

	_, err = os.Stat(c.Dir())
	require.True(t, os.IsNotExist(err))
}

func TestCleanupRunsOnlyOnce(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "memory"), cgroup.DirMode))

	old := cgroup.MountRoot
	cgroup.MountRoot = root
	t.Cleanup(func() { cgroup.MountRoot = old })

	c := &cgroup.Controller{Name: "memory"}
	reg := cgroup.NewRegistry([]*cgroup.Controller{c}, "scope/cleanup-once")
	require.NoError(t, reg.CreateAll())

	cleanup := NewCleanup(reg, nil)
	cleanup.Run()
	require.NoFileExists(t, c.Dir())

	// A second call must not panic even though the directory is already gone.
	cleanup.Run()
}
