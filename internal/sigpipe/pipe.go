// Package sigpipe bridges UNIX signal delivery into a readable pipe, so the
// Event Loop can multiplex signals alongside stdin/stdout through a single
// poll() call.
//
// Go's signal.Notify already performs the async-signal-safe handoff a
// hand-written self-pipe trick would otherwise need (the runtime, not
// application code, funnels the signal into a channel send); this package
// adds the one further step a poll-based event loop needs: forwarding each
// signal number onto a plain pipe fd so it can be polled uniformly with
// stdin and stdout.
package sigpipe

import (
	"encoding/binary"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/lxc/confine/shared/logger"
)

// Pipe is a running signal-to-pipe forwarder.
type Pipe struct {
	read  *os.File
	write *os.File
	ch    chan os.Signal
}

// New creates the internal pipe and starts forwarding the given signals onto
// it. The read end is returned for the Event Loop to poll.
func New(signals ...os.Signal) (*Pipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	p := &Pipe{
		read:  r,
		write: w,
		ch:    make(chan os.Signal, 16),
	}

	signal.Notify(p.ch, signals...)

	go p.forward()

	return p, nil
}

func (p *Pipe) forward() {
	for sig := range p.ch {
		num, _ := sig.(syscall.Signal)

		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(int32(num)))

		_, err := p.write.Write(buf)
		if err != nil {
			// Best-effort: if the write end is somehow broken there is
			// nothing useful left to do but note it and keep draining
			// the channel so the runtime's internal queue doesn't block.
			logger.Warnf("failed to forward signal to pipe: %v", err)
		}
	}
}

// Read end file descriptor, for use with unix.Poll.
func (p *Pipe) Fd() int {
	return int(p.read.Fd())
}

// ReadSignal reads one forwarded signal number from the pipe. It must only
// be called after a poll indicates the fd is readable.
func (p *Pipe) ReadSignal() (unix.Signal, error) {
	buf := make([]byte, 4)

	_, err := readFull(p.read, buf)
	if err != nil {
		return 0, err
	}

	return unix.Signal(binary.LittleEndian.Uint32(buf)), nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// Stop disarms signal delivery and closes the pipe. Disarming first means no
// further signal can re-enter cleanup while it runs.
func (p *Pipe) Stop() {
	signal.Stop(p.ch)
	close(p.ch)
	_ = p.write.Close()
	_ = p.read.Close()
}
