package bus

import (
	"regexp"
	"sync"
	"testing"
	"time"
)

func TestSubscribePublishDeliversToExactTopic(t *testing.T) {
	b := New(10, 10)
	defer b.Stop()

	var got Entry
	var mu sync.Mutex
	done := make(chan struct{}, 1)
	b.Subscribe("index:complete", func(e Entry) {
		mu.Lock()
		got = e
		mu.Unlock()
		done <- struct{}{}
	})

	b.Publish(Entry{Topic: "index:complete", Data: "ok"})
	<-done

	mu.Lock()
	defer mu.Unlock()
	if got.Data != "ok" {
		t.Fatalf("handler received %+v, want Data=ok", got)
	}
}

func TestSubscribeRegexMatchesWildcardTopics(t *testing.T) {
	b := New(10, 10)
	defer b.Stop()

	pattern := regexp.MustCompile(`^parse:.*$`)
	done := make(chan string, 2)
	b.SubscribeRegex(pattern, func(e Entry) { done <- e.Topic })

	b.Publish(Entry{Topic: "parse:complete"})
	b.Publish(Entry{Topic: "parse:failed"})
	b.Publish(Entry{Topic: "index:complete"}) // should not match

	got := map[string]bool{<-done: true, <-done: true}
	if !got["parse:complete"] || !got["parse:failed"] {
		t.Fatalf("regex subscriber received %v, want both parse:* topics", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(10, 10)
	defer b.Stop()

	calls := 0
	var mu sync.Mutex
	unsub := b.Subscribe("t", func(e Entry) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	b.Publish(Entry{Topic: "t"})
	unsub()
	b.Publish(Entry{Topic: "t"})

	time.Sleep(5 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no delivery after unsubscribe)", calls)
	}
}

func TestRingBufferEvictsOldestEntries(t *testing.T) {
	b := New(3, 10)
	defer b.Stop()

	for i := 0; i < 5; i++ {
		b.Publish(Entry{Topic: "t", Data: i})
	}

	hist := b.History("t")
	if len(hist) != 3 {
		t.Fatalf("History() len = %d, want 3 (ring buffer capacity)", len(hist))
	}
	if hist[0].Data != 2 {
		t.Fatalf("History()[0].Data = %v, want 2 (oldest two evicted)", hist[0].Data)
	}
}

func TestHandlerPanicRepublishesAsSubscriptionError(t *testing.T) {
	b := New(10, 10)
	defer b.Stop()

	done := make(chan Entry, 1)
	b.Subscribe("subscription:error", func(e Entry) { done <- e })
	b.Subscribe("risky", func(e Entry) { panic("boom") })

	b.Publish(Entry{Topic: "risky"})

	select {
	case e := <-done:
		if e.Source != "risky" {
			t.Fatalf("subscription:error.Source = %q, want risky", e.Source)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscription:error")
	}
}

func TestDirectQueueBoundedAndFIFO(t *testing.T) {
	b := New(10, 2)
	defer b.Stop()

	b.SendDirect(Entry{Topic: "d", Data: 1})
	b.SendDirect(Entry{Topic: "d", Data: 2})
	b.SendDirect(Entry{Topic: "d", Data: 3})

	drained := b.DrainDirect(10)
	if len(drained) != 2 {
		t.Fatalf("DrainDirect() len = %d, want 2 (bounded queue)", len(drained))
	}
	if drained[0].Data != 2 || drained[1].Data != 3 {
		t.Fatalf("DrainDirect() = %+v, want [2 3] (oldest dropped, FIFO order)", drained)
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	b := &Bus{ringBufSize: 10, topics: make(map[string][]Entry), directCap: 10, stopCh: make(chan struct{})}
	defer b.Stop()

	ttl := time.Nanosecond
	b.topics["t"] = []Entry{{Topic: "t", Timestamp: time.Now().Add(-time.Hour), TTL: &ttl}}
	b.sweep()

	if len(b.History("t")) != 0 {
		t.Fatal("sweep() should remove TTL-expired entries")
	}
}
