package turn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitResolvesOnSignal(t *testing.T) {
	d := NewDetector()
	d.AddFragment("I need")
	d.AddFragment("an appointment")
	d.SignalEndOfTurn()

	text := d.Wait(context.Background(), time.Second)
	assert.Equal(t, "I need an appointment", text)
}

func TestWaitTimesOutWithPartialText(t *testing.T) {
	d := NewDetector()
	d.AddFragment("hello")

	start := time.Now()
	text := d.Wait(context.Background(), 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.Equal(t, "hello", text)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestWaitTimesOutEmpty(t *testing.T) {
	d := NewDetector()
	text := d.Wait(context.Background(), 50*time.Millisecond)
	assert.Empty(t, text)
}

func TestStateClearedAfterResolution(t *testing.T) {
	d := NewDetector()
	d.AddFragment("first turn")
	d.SignalEndOfTurn()
	assert.Equal(t, "first turn", d.Wait(context.Background(), time.Second))

	// A stale signal must not leak into the next turn.
	start := time.Now()
	text := d.Wait(context.Background(), 50*time.Millisecond)
	assert.Empty(t, text)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestSignalIsIdempotent(t *testing.T) {
	d := NewDetector()
	d.AddFragment("hi")
	d.SignalEndOfTurn()
	d.SignalEndOfTurn()
	assert.Equal(t, "hi", d.Wait(context.Background(), time.Second))
}

func TestWaitHonorsContextCancel(t *testing.T) {
	d := NewDetector()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	d.Wait(ctx, 10*time.Second)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFragmentsJoinInInsertionOrder(t *testing.T) {
	d := NewDetector()
	for _, f := range []string{"one", "two", "three"} {
		d.AddFragment(f)
	}
	d.SignalEndOfTurn()
	assert.Equal(t, "one two three", d.Wait(context.Background(), time.Second))
}
