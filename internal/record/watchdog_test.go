package record

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchdogFiresOnce(t *testing.T) {
	var n atomic.Int32
	w := NewWatchdog(20*time.Millisecond, func() { n.Add(1) })
	w.Arm()
	time.Sleep(80 * time.Millisecond)
	if got := n.Load(); got != 1 {
		t.Fatalf("expected 1 fire, got %d", got)
	}
	if w.Armed() {
		t.Fatal("watchdog must be disarmed after firing")
	}
	time.Sleep(40 * time.Millisecond)
	if got := n.Load(); got != 1 {
		t.Fatalf("expected no further fires, got %d", got)
	}
}

func TestWatchdogResetDefersByFullDuration(t *testing.T) {
	fired := make(chan time.Time, 1)
	w := NewWatchdog(60*time.Millisecond, func() { fired <- time.Now() })
	w.Arm()
	time.Sleep(40 * time.Millisecond)
	resetAt := time.Now()
	w.Reset()

	select {
	case at := <-fired:
		if elapsed := at.Sub(resetAt); elapsed < 60*time.Millisecond {
			t.Fatalf("fired %v after reset, expected at least 60ms", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("watchdog never fired")
	}
}

func TestWatchdogMultipleResetsCoalesce(t *testing.T) {
	var n atomic.Int32
	w := NewWatchdog(30*time.Millisecond, func() { n.Add(1) })
	w.Arm()
	for i := 0; i < 5; i++ {
		time.Sleep(10 * time.Millisecond)
		w.Reset()
	}
	time.Sleep(100 * time.Millisecond)
	if got := n.Load(); got != 1 {
		t.Fatalf("expected exactly one fire, got %d", got)
	}
}

func TestWatchdogCancelledNeverFires(t *testing.T) {
	var n atomic.Int32
	w := NewWatchdog(20*time.Millisecond, func() { n.Add(1) })
	w.Arm()
	w.Cancel()
	time.Sleep(60 * time.Millisecond)
	if got := n.Load(); got != 0 {
		t.Fatalf("expected no fire, got %d", got)
	}
	if w.Armed() {
		t.Fatal("cancelled watchdog reports armed")
	}
}

func TestWatchdogConcurrentResetNeverDoubleFires(t *testing.T) {
	var n atomic.Int32
	w := NewWatchdog(30*time.Millisecond, func() { n.Add(1) })
	w.Arm()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				w.Reset()
			}
		}()
	}
	wg.Wait()
	time.Sleep(120 * time.Millisecond)
	if got := n.Load(); got != 1 {
		t.Fatalf("expected exactly one fire after concurrent resets, got %d", got)
	}
}
