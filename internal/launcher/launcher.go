// Package launcher implements the Child Launcher: it starts the process
// that will become the direct child, attaches it to every controller's
// cgroup, drops privileges, and execs the target program.
//
// Go's runtime forbids a bare fork() without an immediate exec from a
// multi-threaded process, so the "child" half of this component is
// realized as a re-exec of confine's own binary (Args[0] renamed to
// Sentinel), following the pattern kawamuray/cgrun uses for the same
// problem. The re-exec'd process attaches itself to the cgroups,
// drops gid then uid, and calls syscall.Exec, the same sequence a direct
// fork+setuid+exec would perform, just split across an exec boundary
// instead of a fork boundary.
package launcher

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/lxc/confine/internal/cgroup"
)

// Start launches the re-exec'd child stage: it will, on its own, attach to
// every controller in reg, drop to gid/uid if set, and exec program with
// argv. The parent must not drop privileges — it needs them later to write
// cgroup.procs and rmdir during Cleanup.
func Start(reg *cgroup.Registry, uid, gid *uint32, program string, argv []string) (*exec.Cmd, error) {
	procFiles := make([]string, 0, len(reg.Controllers))
	for _, c := range reg.Controllers {
		procFiles = append(procFiles, c.ProcFile())
	}

	spec := &ChildSpec{
		ProcFiles: procFiles,
		Gid:       gid,
		Uid:       uid,
		Program:   program,
		Argv:      argv,
	}

	token, err := spec.Encode()
	if err != nil {
		return nil, err
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve confine's own executable path: %w", err)
	}

	cmd := exec.Command(self, token)
	cmd.Args[0] = Sentinel
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("failed to start child: %w", err)
	}

	return cmd, nil
}
