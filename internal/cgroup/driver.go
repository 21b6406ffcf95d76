package cgroup

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Create makes a controller's cgroup directory, including every missing
// intermediate segment below <MountRoot>/<name>/. It fails if the leaf
// already exists: attaching to a pre-existing cgroup would risk co-tenanting
// with an unrelated workload and removing a cgroup this process didn't
// create.
func Create(c *Controller) error {
	_, err := os.Stat(c.dir)
	if err == nil {
		return fmt.Errorf("cgroup directory %s already exists; please choose a deeper path or clean up", c.dir)
	}

	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat cgroup directory %s: %w", c.dir, err)
	}

	err = os.MkdirAll(c.dir, DirMode)
	if err != nil {
		return fmt.Errorf("failed to create cgroup directory %s: %w", c.dir, err)
	}

	return nil
}

// Configure writes every (key, value) setting to <dir>/<key>, in declared
// order, replacing any prior content.
func Configure(c *Controller) error {
	for _, setting := range c.Settings {
		path := fmt.Sprintf("%s/%s", c.dir, setting.Key)

		err := os.WriteFile(path, []byte(setting.Value), 0o600)
		if err != nil {
			return fmt.Errorf("failed to write cgroup setting %s: %w", path, err)
		}
	}

	return nil
}

// Attach moves a pid into the controller's cgroup by writing it to
// cgroup.procs.
func Attach(c *Controller, pid int) error {
	return AttachPath(c.procfile, pid)
}

// AttachPath moves a pid into whatever cgroup.procs file procFile names.
// It underlies Attach, and is also the entry point for the re-exec'd child
// stage in internal/launcher, which only has the procfile path (carried
// across the exec boundary in a ChildSpec) and no *Controller to call
// Attach with.
func AttachPath(procFile string, pid int) error {
	f, err := os.OpenFile(procFile, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", procFile, err)
	}

	defer func() { _ = f.Close() }()

	_, err = f.WriteString(strconv.Itoa(pid))
	if err != nil {
		return fmt.Errorf("failed to attach pid %d to %s: %w", pid, procFile, err)
	}

	return nil
}

// Pids enumerates the pids currently listed in the controller's
// cgroup.procs. A missing file is treated as "no pids".
func Pids(c *Controller) ([]int, error) {
	f, err := os.Open(c.procfile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to open %s: %w", c.procfile, err)
	}

	defer func() { _ = f.Close() }()

	var pids []int

	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)

	for scanner.Scan() {
		field := strings.TrimSpace(scanner.Text())
		if field == "" {
			continue
		}

		pid, err := strconv.Atoi(field)
		if err != nil {
			continue
		}

		pids = append(pids, pid)
	}

	return pids, scanner.Err()
}

// Destroy removes the controller's cgroup directory. It is best-effort:
// errors (including a directory that's already gone) are ignored so cleanup
// stays idempotent.
func Destroy(c *Controller) {
	_ = os.Remove(c.dir)
}
