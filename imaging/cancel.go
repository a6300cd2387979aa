package imaging

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Flag is the cooperative stop signal shared between a running operation
// and whatever requests cancellation. Once stopped it stays stopped.
type Flag struct {
	stopped atomic.Bool
}

// NewFlag returns a flag in the running state.
func NewFlag() *Flag {
	return &Flag{}
}

// Stop requests cancellation.
func (f *Flag) Stop() {
	f.stopped.Store(true)
}

// Stopped reports whether cancellation was requested. A nil flag never stops.
func (f *Flag) Stopped() bool {
	return f != nil && f.stopped.Load()
}

// NotifyInterrupt stops f on SIGINT or SIGTERM. The returned func detaches
// the handler.
func NotifyInterrupt(f *Flag) (stop func()) {
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigs:
			f.Stop()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
