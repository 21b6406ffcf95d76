package supervisor

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/lxc/confine/internal/sigpipe"
)

// wakeupKind classifies why loop returned.
type wakeupKind int

const (
	wakeupStdinClosed wakeupKind = iota
	wakeupStdoutClosed
	wakeupSignal
)

const (
	pollStdin = iota
	pollStdout
	pollSigPipe
)

// loop polls stdin, the signal pipe, and stdout with an indefinite timeout,
// retrying on EINTR, and classifies the wake-up in the priority order the
// spec calls for: stdin hangup/error, then stdout hangup/error, then a
// readable signal pipe.
func loop(stdinFd, stdoutFd int, sig *sigpipe.Pipe) (wakeupKind, unix.Signal, error) {
	fds := []unix.PollFd{
		{Fd: int32(stdinFd), Events: 0},
		{Fd: int32(stdoutFd), Events: 0},
		{Fd: int32(sig.Fd()), Events: unix.POLLIN},
	}

	for {
		_, err := unix.Poll(fds, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}

			return 0, 0, err
		}

		if hangup(fds[pollStdin].Revents) {
			return wakeupStdinClosed, 0, nil
		}

		if hangup(fds[pollStdout].Revents) {
			return wakeupStdoutClosed, 0, nil
		}

		if fds[pollSigPipe].Revents&unix.POLLIN != 0 {
			num, err := sig.ReadSignal()
			if err != nil {
				return 0, 0, err
			}

			return wakeupSignal, num, nil
		}

		// Spurious wake-up (e.g. POLLNVAL before fds are ready); go
		// around again.
	}
}

func hangup(revents int16) bool {
	return revents&(unix.POLLHUP|unix.POLLERR) != 0
}
