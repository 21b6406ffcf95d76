// Package cgroup implements the Controller Registry and Cgroup Filesystem
// Driver: creating and configuring per-controller cgroup directories under a
// fixed mount root, attaching pids to them, enumerating their members, and
// removing them again.
//
// It targets classic, per-controller ("legacy"/hybrid) cgroup hierarchies,
// the way github.com/lxc/lxd's lxd/cgroup.go talks to /sys/fs/cgroup
// directly rather than through the unified cgroup2 tree.
package cgroup

import "path/filepath"

// MountRoot is the fixed cgroup mount point this package operates under.
// It is a var, not a const, purely so tests can point it at a temporary
// directory instead of the real /sys/fs/cgroup.
var MountRoot = "/sys/fs/cgroup"

// ProcsFile is the per-cgroup file listing the pids currently assigned to it.
const ProcsFile = "cgroup.procs"

// DirMode is the mode used when creating cgroup directories.
const DirMode = 0o755

// Setting is one (key, value) pair written to a file inside a controller's
// cgroup directory, in the order it was declared on the command line.
type Setting struct {
	Key   string
	Value string
}

// Controller describes one --controller flag: a controller name, its
// ordered settings, and (once Freeze has run) the resolved directory it
// lives in.
type Controller struct {
	Name     string
	Settings []Setting

	dir      string
	procfile string
}

// Freeze resolves Dir and ProcFile for the controller given the shared
// cgroup sub-path. It must be called exactly once, after parsing and before
// any filesystem operation.
func (c *Controller) Freeze(cgroupPath string) {
	c.dir = filepath.Join(MountRoot, c.Name, cgroupPath)
	c.procfile = filepath.Join(c.dir, ProcsFile)
}

// Dir is the controller's cgroup directory, valid after Freeze.
func (c *Controller) Dir() string {
	return c.dir
}

// ProcFile is the controller's cgroup.procs path, valid after Freeze.
func (c *Controller) ProcFile() string {
	return c.procfile
}
