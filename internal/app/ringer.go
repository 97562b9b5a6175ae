package app

import (
	"io"
	"sync"
	"time"

	"wake-go/internal/wake"
)

// BellRinger rings the terminal bell every interval until stopped.
type BellRinger struct {
	w        io.Writer
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewBellRinger(w io.Writer, interval time.Duration) *BellRinger {
	return &BellRinger{w: w, interval: interval}
}

// Start begins ringing. Starting a ringing bell does nothing.
func (r *BellRinger) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		return nil
	}
	if _, err := io.WriteString(r.w, "\a"); err != nil {
		return err
	}
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.loop(r.stop, r.done)
	return nil
}

func (r *BellRinger) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			io.WriteString(r.w, "\a")
			r.mu.Unlock()
		}
	}
}

// Stop silences the bell and waits for the ringing goroutine to exit.
func (r *BellRinger) Stop() error {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

var _ wake.Ringer = (*BellRinger)(nil)
