package engine

import (
	"sync"
	"testing"
)

func TestMailboxFIFO(t *testing.T) {
	m := NewMailbox()

	for i := 1; i <= 5; i++ {
		m.Post(Envelope{Target: Handle(i), Producer: "test"})
	}
	if m.Len() != 5 {
		t.Fatalf("expected 5 queued envelopes, got %d", m.Len())
	}

	out := m.DrainAll()
	if len(out) != 5 {
		t.Fatalf("expected 5 drained envelopes, got %d", len(out))
	}
	for i, env := range out {
		if env.Target != Handle(i+1) {
			t.Errorf("envelope %d out of order: got target %d", i, env.Target)
		}
	}

	if m.Len() != 0 {
		t.Error("drain must empty the queue")
	}
	if got := m.DrainAll(); len(got) != 0 {
		t.Errorf("second drain should be empty, got %d", len(got))
	}
}

func TestMailboxWakeCoalesced(t *testing.T) {
	m := NewMailbox()

	// Many posts, one buffered wake signal.
	for i := 0; i < 10; i++ {
		m.Post(Envelope{Target: Handle(i + 1)})
	}

	select {
	case <-m.Wake():
	default:
		t.Fatal("expected a wake signal after posting")
	}
	select {
	case <-m.Wake():
		t.Fatal("wake signal must be coalesced to one")
	default:
	}
}

func TestMailboxConcurrentPost(t *testing.T) {
	m := NewMailbox()

	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				m.Post(Envelope{Producer: "concurrent"})
			}
		}()
	}
	wg.Wait()

	if got := m.Len(); got != producers*perProducer {
		t.Errorf("expected %d envelopes, got %d", producers*perProducer, got)
	}
}
