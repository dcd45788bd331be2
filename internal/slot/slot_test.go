package slot

import (
	"sync"
	"testing"
	"time"
)

func TestPublishThenTake(t *testing.T) {
	s := New()
	want := &Payload{Picture: []byte("frame-1"), Seq: 1}
	s.Publish(want)

	got, ok := s.Take()
	if !ok {
		t.Fatal("Take() returned ok=false")
	}
	if got != want {
		t.Errorf("Take() = %v, want %v", got, want)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	s := New()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.Publish(&Payload{Seq: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked despite no reader draining the slot")
	}
}

func TestDropOldestReplacesUnreadPayload(t *testing.T) {
	s := New()
	s.Publish(&Payload{Seq: 1})
	s.Publish(&Payload{Seq: 2})

	got, ok := s.Take()
	if !ok {
		t.Fatal("Take() returned ok=false")
	}
	if got.Seq != 2 {
		t.Errorf("expected the newer payload (seq=2) to survive, got seq=%d", got.Seq)
	}
	if s.DroppedCount() != 1 {
		t.Errorf("DroppedCount() = %d, want 1", s.DroppedCount())
	}
}

func TestTakeBlocksUntilPublish(t *testing.T) {
	s := New()
	result := make(chan *Payload, 1)
	go func() {
		p, _ := s.Take()
		result <- p
	}()

	select {
	case <-result:
		t.Fatal("Take() returned before any Publish")
	case <-time.After(50 * time.Millisecond):
	}

	s.Publish(&Payload{Seq: 9})
	select {
	case p := <-result:
		if p.Seq != 9 {
			t.Errorf("got seq %d, want 9", p.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("Take() never returned after Publish")
	}
}

func TestTakeTimeoutExpires(t *testing.T) {
	s := New()
	_, ok, timedOut := s.TakeTimeout(20 * time.Millisecond)
	if !timedOut || ok {
		t.Errorf("expected (false, true), got (%v, %v)", ok, timedOut)
	}
}

func TestTakeTimeoutReturnsFrameBeforeDeadline(t *testing.T) {
	s := New()
	s.Publish(&Payload{Seq: 5})
	p, ok, timedOut := s.TakeTimeout(time.Second)
	if timedOut || !ok {
		t.Fatalf("expected a frame, got ok=%v timedOut=%v", ok, timedOut)
	}
	if p.Seq != 5 {
		t.Errorf("got seq %d, want 5", p.Seq)
	}
}

func TestCloseWakesBlockedReader(t *testing.T) {
	s := New()
	done := make(chan bool, 1)
	go func() {
		_, ok := s.Take()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected ok=false after Close with nothing pending")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the blocked reader")
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	s := New()
	s.Close()
	s.Publish(&Payload{Seq: 1})

	_, ok := s.Take()
	if ok {
		t.Error("expected Take() to report ok=false on a closed, never-written slot")
	}
}

func TestCloseIdempotent(t *testing.T) {
	s := New()
	s.Close()
	s.Close() // must not panic or deadlock
}

// TestOrderingIsASubsequence verifies that the sequence of payloads a single
// reader observes is order-preserving, even with drops, matching spec.md
// §8's quantified ordering invariant.
func TestOrderingIsASubsequence(t *testing.T) {
	s := New()
	var observed []uint64
	var wg sync.WaitGroup
	wg.Add(1)
	stop := make(chan struct{})
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			p, ok, timedOut := s.TakeTimeout(10 * time.Millisecond)
			if timedOut {
				continue
			}
			if !ok {
				return
			}
			observed = append(observed, p.Seq)
		}
	}()

	for i := uint64(1); i <= 200; i++ {
		s.Publish(&Payload{Seq: i})
	}
	time.Sleep(50 * time.Millisecond)
	close(stop)
	s.Close()
	wg.Wait()

	var last uint64
	for _, seq := range observed {
		if seq <= last {
			t.Fatalf("observed sequence not strictly increasing: %v", observed)
		}
		last = seq
	}
}
