package supervisor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lxc/confine/internal/cgroup"
	"github.com/lxc/confine/internal/sigpipe"
	"github.com/lxc/confine/shared/logger"
)

// Cleanup is the single shutdown mechanism: it runs exactly once per
// process, on every exit path. It kills every pid still resident in the
// registry's cgroups (through two bounded SIGKILL retry bursts) and then
// best-effort removes the cgroup directories.
//
// It must never itself raise: every step is best-effort and every error is
// logged, not returned.
type Cleanup struct {
	reg *cgroup.Registry
	sig *sigpipe.Pipe

	once sync.Once
}

// NewCleanup builds a Cleanup hook bound to the given registry and signal
// pipe. Pass a nil sig if signals were never armed.
func NewCleanup(reg *cgroup.Registry, sig *sigpipe.Pipe) *Cleanup {
	return &Cleanup{reg: reg, sig: sig}
}

// Run executes the cleanup sequence. Safe to call more than once; only the
// first call does anything.
func (c *Cleanup) Run() {
	c.once.Do(c.run)
}

func (c *Cleanup) run() {
	// Disarm signal handlers first so cleanup cannot re-enter itself via a
	// signal delivered while it's running.
	if c.sig != nil {
		c.sig.Stop()
	}

	if c.reg == nil || len(c.reg.Controllers) == 0 {
		return
	}

	killResident := func() int {
		pids := c.reg.ResidentPids()
		for _, pid := range pids {
			err := unix.Kill(pid, unix.SIGKILL)
			if err != nil && err != unix.ESRCH {
				logger.Warnf("failed to SIGKILL resident pid %d: %v", pid, err)
			}
		}

		return len(pids)
	}

	// First burst: up to 10 rounds, sleeping ~1ms between them so newly
	// forked descendants have a chance to show up in cgroup.procs before
	// the next scan.
	remaining := 0
	for i := 0; i < 10; i++ {
		remaining = killResident()
		if remaining == 0 {
			break
		}

		time.Sleep(time.Millisecond)
	}

	// Second burst: up to 10 rounds, back-to-back, no sleep.
	if remaining > 0 {
		for i := 0; i < 10; i++ {
			remaining = killResident()
			if remaining == 0 {
				break
			}
		}
	}

	if remaining > 0 {
		logger.Warnf("%d descendant process(es) survived cleanup", remaining)
	}

	c.reg.DestroyAll()
}
