package registry

import (
	"bytes"
	"time"

	"github.com/grovetools/studio/internal/action"
)

const (
	// flushThreshold is the pending-byte count that forces an immediate
	// TerminalOutput dispatch.
	flushThreshold = 16 * 1024
	// flushInterval bounds how long a small chunk may sit before it is
	// dispatched.
	flushInterval = 8 * time.Millisecond
	readBufSize   = 4096
)

// pump reads pty output and re-enters it into the store as TerminalOutput
// actions. Bursts are coalesced: a chunk is emitted when flushThreshold
// bytes are pending or flushInterval has passed since the first pending
// byte, whichever comes first. One action per read would saturate the
// mutation queue under heavy output.
func (r *Registry) pump(s *session) {
	defer r.wg.Done()

	chunks := make(chan []byte, 64)
	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, readBufSize)
			n, err := s.ptmx.Read(buf)
			if n > 0 {
				chunks <- buf[:n]
			}
			if err != nil {
				// EIO when the slave side closes; either way the pump ends.
				return
			}
		}
	}()

	var pending bytes.Buffer
	timer := time.NewTimer(flushInterval)
	if !timer.Stop() {
		<-timer.C
	}
	timerArmed := false

	flush := func() {
		if pending.Len() == 0 {
			return
		}
		data := pending.String()
		pending.Reset()
		r.dispatch(action.New(action.KindTerminalOutput, &action.TerminalOutput{
			SessionID: s.id,
			Data:      data,
		}))
	}

	for {
		select {
		case data, ok := <-chunks:
			if !ok {
				if timerArmed && !timer.Stop() {
					<-timer.C
				}
				flush()
				return
			}
			pending.Write(data)
			if pending.Len() >= flushThreshold {
				if timerArmed && !timer.Stop() {
					<-timer.C
				}
				timerArmed = false
				flush()
			} else if !timerArmed {
				timer.Reset(flushInterval)
				timerArmed = true
			}
		case <-timer.C:
			timerArmed = false
			flush()
		}
	}
}
