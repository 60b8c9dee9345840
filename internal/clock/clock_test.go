package clock

import (
	"testing"
	"time"
)

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	var order []string
	m.AfterFunc(30*time.Millisecond, func() { order = append(order, "c") })
	m.AfterFunc(10*time.Millisecond, func() { order = append(order, "a") })
	m.AfterFunc(20*time.Millisecond, func() { order = append(order, "b") })

	m.Advance(25 * time.Millisecond)
	if got := len(order); got != 2 {
		t.Fatalf("fired %d timers, want 2", got)
	}
	if order[0] != "a" || order[1] != "b" {
		t.Errorf("fire order = %v", order)
	}

	m.Advance(10 * time.Millisecond)
	if len(order) != 3 || order[2] != "c" {
		t.Errorf("remaining timer never fired: %v", order)
	}
}

func TestManual_StopPreventsFiring(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	fired := false
	timer := m.AfterFunc(10*time.Millisecond, func() { fired = true })

	if !timer.Stop() {
		t.Error("first Stop should report cancellation")
	}
	if timer.Stop() {
		t.Error("second Stop should report nothing to cancel")
	}

	m.Advance(time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestManual_CascadingTimers(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	// Each tick re-arms the next, the way the reveal scheduler does.
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		if ticks < 5 {
			m.AfterFunc(10*time.Millisecond, tick)
		}
	}
	m.AfterFunc(10*time.Millisecond, tick)

	m.Advance(50 * time.Millisecond)
	if ticks != 5 {
		t.Errorf("ticks = %d, want 5", ticks)
	}
}

func TestManual_NowAdvancesToDeadline(t *testing.T) {
	start := time.Unix(0, 0)
	m := NewManual(start)

	var at time.Time
	m.AfterFunc(10*time.Millisecond, func() { at = m.Now() })

	m.Advance(time.Second)
	if want := start.Add(10 * time.Millisecond); !at.Equal(want) {
		t.Errorf("callback saw now=%v, want %v", at, want)
	}
	if want := start.Add(time.Second); !m.Now().Equal(want) {
		t.Errorf("final now=%v, want %v", m.Now(), want)
	}
}

func TestSystem_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	System().AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("system timer never fired")
	}
}
