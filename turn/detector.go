// Package turn accumulates transcript fragments for the remote speaker's
// current turn and resolves when the transcription backend signals
// end-of-utterance, or after a timeout.
package turn

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds how long Wait blocks without an end-of-turn signal.
// A dropped transcription backend must never stall the call indefinitely.
const DefaultTimeout = 20 * time.Second

// Detector is safe for concurrent use: fragments arrive from the
// transcription session's read loop while the listen loop blocks in Wait.
type Detector struct {
	mu        sync.Mutex
	fragments []string
	signal    chan struct{}
	signaled  bool
}

func NewDetector() *Detector {
	return &Detector{signal: make(chan struct{})}
}

// AddFragment appends a final transcript fragment to the in-progress turn.
func (d *Detector) AddFragment(text string) {
	d.mu.Lock()
	d.fragments = append(d.fragments, text)
	d.mu.Unlock()
}

// SignalEndOfTurn marks the current turn complete. Idempotent until the
// next Wait resolves.
func (d *Detector) SignalEndOfTurn() {
	d.mu.Lock()
	if !d.signaled {
		d.signaled = true
		close(d.signal)
	}
	d.mu.Unlock()
}

// Wait blocks until the end-of-turn signal fires or timeout elapses, then
// returns the accumulated turn text, space-joined and trimmed, which may
// be empty on timeout. Accumulated state is cleared exactly once per
// resolution, so the next Wait starts fresh.
func (d *Detector) Wait(ctx context.Context, timeout time.Duration) string {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d.mu.Lock()
	signal := d.signal
	d.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-signal:
	case <-timer.C:
	case <-ctx.Done():
	}

	d.mu.Lock()
	text := strings.TrimSpace(strings.Join(d.fragments, " "))
	d.fragments = nil
	if d.signaled {
		d.signaled = false
		d.signal = make(chan struct{})
	}
	d.mu.Unlock()
	return text
}
