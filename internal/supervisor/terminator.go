package supervisor

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/lxc/confine/shared/logger"
)

// Terminate sends SIGTERM to the direct child, waits graceMicros
// microseconds (skipped entirely when zero), then sends SIGKILL. It targets
// only the direct child pid — descendants are reaped separately, through
// the cgroup procfile, by Cleanup.
func Terminate(pid int, graceMicros int) {
	logger.Debugf("sending SIGTERM to direct child %d", pid)

	err := unix.Kill(pid, unix.SIGTERM)
	if err != nil && err != unix.ESRCH {
		logger.Warnf("failed to send SIGTERM to %d: %v", pid, err)
	}

	if graceMicros > 0 {
		time.Sleep(time.Duration(graceMicros) * time.Microsecond)
	}

	logger.Debugf("sending SIGKILL to direct child %d", pid)

	err = unix.Kill(pid, unix.SIGKILL)
	if err != nil && err != unix.ESRCH {
		logger.Warnf("failed to send SIGKILL to %d: %v", pid, err)
	}
}
