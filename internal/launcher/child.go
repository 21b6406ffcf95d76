package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/lxc/confine/internal/cgroup"
)

// RunChild is the body of the re-exec'd child stage (argv[0] == Sentinel).
// It attaches its own pid to every cgroup, drops gid then uid if requested,
// and execs the target. It does not return on success; on failure it
// returns an error describing what went wrong, and the caller (confine's
// main) exits non-zero, since a returning syscall.Exec means the target
// program could not be started.
func RunChild(token string) error {
	spec, err := DecodeChildSpec(token)
	if err != nil {
		return err
	}

	pid := os.Getpid()

	for _, procFile := range spec.ProcFiles {
		err := cgroup.AttachPath(procFile, pid)
		if err != nil {
			return err
		}
	}

	// Gid before uid: once the real uid is dropped, the process may no
	// longer be permitted to change groups.
	if spec.Gid != nil {
		err := syscall.Setgid(int(*spec.Gid))
		if err != nil {
			return fmt.Errorf("failed to set gid %d: %w", *spec.Gid, err)
		}
	}

	if spec.Uid != nil {
		err := syscall.Setuid(int(*spec.Uid))
		if err != nil {
			return fmt.Errorf("failed to set uid %d: %w", *spec.Uid, err)
		}
	}

	path, err := exec.LookPath(spec.Program)
	if err != nil {
		return fmt.Errorf("failed to look up program %q: %w", spec.Program, err)
	}

	argv := spec.Argv
	if len(argv) == 0 {
		argv = []string{spec.Program}
	}

	err = syscall.Exec(path, argv, os.Environ())
	if err != nil {
		return fmt.Errorf("failed to exec %q: %w", spec.Program, err)
	}

	return nil
}
