// Package supervisor implements the Event Loop, Terminator, and Cleanup Hook:
// the event-driven half of confine that reacts to host liveness signals and
// the direct child's own death, and guarantees teardown on every exit path.
package supervisor

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/lxc/confine/internal/cgroup"
	"github.com/lxc/confine/internal/sigpipe"
	"github.com/lxc/confine/shared/logger"
)

// genericFailure is the exit status used for every shutdown path that isn't
// a transparent relay of the direct child's own exit code.
const genericFailure = 1

// Supervisor drives the event loop for one direct child and its registry of
// cgroups, until a shutdown trigger fires, and returns the process's final
// exit status.
type Supervisor struct {
	ChildPid    int
	GraceMicros int
	Registry    *cgroup.Registry
}

// Run polls stdin, stdout, and the signal pipe until a shutdown trigger
// fires, and returns the exit status confine's own process should exit
// with. Cleanup always runs before Run returns, regardless of which path
// was taken.
func (s *Supervisor) Run() int {
	sig, err := sigpipe.New(unix.SIGCHLD, unix.SIGINT, unix.SIGQUIT, unix.SIGTERM)
	if err != nil {
		logger.Errorf("failed to set up signal pipe: %v", err)
		s.cleanupWithout(nil)

		return genericFailure
	}

	cleanup := NewCleanup(s.Registry, sig)
	defer cleanup.Run()

	stdinFd := int(os.Stdin.Fd())
	stdoutFd := int(os.Stdout.Fd())

	for {
		kind, num, err := loop(stdinFd, stdoutFd, sig)
		if err != nil {
			logger.Errorf("event loop failed: %v", err)
			return genericFailure
		}

		switch kind {
		case wakeupStdinClosed:
			logger.Debug("host closed stdin; shutting down")
			Terminate(s.ChildPid, s.GraceMicros)

			return 0
		case wakeupStdoutClosed:
			logger.Debug("host closed stdout; shutting down")
			Terminate(s.ChildPid, s.GraceMicros)

			return 0
		case wakeupSignal:
			if code, done := s.dispatch(num); done {
				return code
			}
		}
	}
}

func (s *Supervisor) cleanupWithout(sig *sigpipe.Pipe) {
	NewCleanup(s.Registry, sig).Run()
}

// dispatch handles one signal read from the pipe, per §4.6. It returns
// (exitCode, true) when the signal should end the process, or
// (_, false) to keep looping.
func (s *Supervisor) dispatch(num unix.Signal) (int, bool) {
	switch num {
	case unix.SIGCHLD:
		return s.reapChildren()
	case unix.SIGINT, unix.SIGQUIT, unix.SIGTERM:
		logger.Debugf("received %v; shutting down", num)
		return genericFailure, true
	default:
		logger.Errorf("fatal: unexpected signal %v", num)
		return genericFailure, true
	}
}

// reapChildren drains every exited child available via WNOHANG. If the
// direct child is among them, its exit status (or a generic failure status
// if it didn't exit normally) ends the process. SIGCHLDs for other pids —
// reparented grandchildren, for instance — are logged and otherwise
// ignored; Cleanup is what actually reaps descendants, via the cgroup
// procfile.
func (s *Supervisor) reapChildren() (int, bool) {
	for {
		var ws unix.WaitStatus

		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err != nil {
			if err == unix.ECHILD {
				return 0, false
			}

			logger.Warnf("wait4 failed: %v", err)
			return 0, false
		}

		if pid <= 0 {
			return 0, false
		}

		if pid != s.ChildPid {
			logger.Debugf("ignoring SIGCHLD for non-direct-child pid %d", pid)
			continue
		}

		if ws.Exited() {
			return ws.ExitStatus(), true
		}

		return genericFailure, true
	}
}
