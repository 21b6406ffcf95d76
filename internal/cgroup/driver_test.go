package cgroup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempMountRoot(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "memory"), DirMode))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cpu"), DirMode))

	old := MountRoot
	MountRoot = root
	t.Cleanup(func() { MountRoot = old })

	return root
}

func TestCreateRejectsExistingLeaf(t *testing.T) {
	withTempMountRoot(t)

	c := &Controller{Name: "memory"}
	c.Freeze("scope/job1")

	require.NoError(t, Create(c))

	err := Create(c)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigureWritesSettingsInOrder(t *testing.T) {
	withTempMountRoot(t)

	c := &Controller{
		Name: "memory",
		Settings: []Setting{
			{Key: "memory.limit_in_bytes", Value: "1048576"},
			{Key: "memory.swappiness", Value: "0"},
		},
	}
	c.Freeze("scope/job1")

	require.NoError(t, Create(c))
	require.NoError(t, Configure(c))

	limit, err := os.ReadFile(filepath.Join(c.Dir(), "memory.limit_in_bytes"))
	require.NoError(t, err)
	assert.Equal(t, "1048576", string(limit))

	swap, err := os.ReadFile(filepath.Join(c.Dir(), "memory.swappiness"))
	require.NoError(t, err)
	assert.Equal(t, "0", string(swap))
}

func TestAttachAndPids(t *testing.T) {
	withTempMountRoot(t)

	c := &Controller{Name: "memory"}
	c.Freeze("scope/job1")
	require.NoError(t, Create(c))

	// cgroup.procs doesn't auto-exist on a plain directory outside a real
	// cgroupfs mount, so create it the way the kernel would.
	procFile, err := os.Create(c.ProcFile())
	require.NoError(t, err)
	require.NoError(t, procFile.Close())

	require.NoError(t, Attach(c, 4242))

	pids, err := Pids(c)
	require.NoError(t, err)
	assert.Equal(t, []int{4242}, pids)
}

func TestAttachPathWritesDecimalPid(t *testing.T) {
	dir := t.TempDir()
	procFile := filepath.Join(dir, "cgroup.procs")
	require.NoError(t, os.WriteFile(procFile, nil, 0o600))

	require.NoError(t, AttachPath(procFile, 4242))

	contents, err := os.ReadFile(procFile)
	require.NoError(t, err)
	assert.Equal(t, "4242", string(contents))
}

func TestAttachPathMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	err := AttachPath(filepath.Join(dir, "does-not-exist", "cgroup.procs"), os.Getpid())
	assert.Error(t, err)
}

func TestPidsAbsentFileMeansNone(t *testing.T) {
	withTempMountRoot(t)

	c := &Controller{Name: "memory"}
	c.Freeze("scope/missing")

	pids, err := Pids(c)
	require.NoError(t, err)
	assert.Empty(t, pids)
}

func TestDestroyIsIdempotent(t *testing.T) {
	withTempMountRoot(t)

	c := &Controller{Name: "memory"}
	c.Freeze("scope/job1")
	require.NoError(t, Create(c))

	Destroy(c)
	_, err := os.Stat(c.Dir())
	assert.True(t, os.IsNotExist(err))

	// Removing again must not panic or error visibly.
	Destroy(c)
}

func TestRegistryPreservesOrderAndResidentPids(t *testing.T) {
	withTempMountRoot(t)

	controllers := []*Controller{
		{Name: "memory", Settings: []Setting{{Key: "memory.limit_in_bytes", Value: "1"}}},
		{Name: "cpu", Settings: []Setting{{Key: "cpu.shares", Value: "512"}}},
	}

	reg := NewRegistry(controllers, "scope/job2")
	require.NoError(t, reg.CreateAll())
	require.NoError(t, reg.ConfigureAll())

	for _, c := range reg.Controllers {
		f, err := os.Create(c.ProcFile())
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	require.NoError(t, reg.AttachAll(100))

	pids := reg.ResidentPids()
	assert.Equal(t, []int{100}, pids)

	// On a real cgroupfs rmdir succeeds while the kernel's control files
	// are listed; here they are plain files, so remove the stand-ins first.
	for _, c := range reg.Controllers {
		require.NoError(t, os.Remove(c.ProcFile()))

		for _, s := range c.Settings {
			require.NoError(t, os.Remove(filepath.Join(c.Dir(), s.Key)))
		}
	}

	reg.DestroyAll()
	_, err := os.Stat(reg.Controllers[0].Dir())
	assert.True(t, os.IsNotExist(err))
}
