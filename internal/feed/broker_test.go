package feed

import (
	"testing"
	"time"

	"github.com/yourorg/aquamonitor/internal/domain"
)

func TestBrokerDeliversToMatchingSubscribers(t *testing.T) {
	b := NewBroker(nil)

	ch1, cancel1 := b.Subscribe(1)
	defer cancel1()
	ch2, cancel2 := b.Subscribe(2)
	defer cancel2()

	b.Publish(&domain.Measurement{AquariumID: 1, Kind: "ph", Value: 7.2})

	select {
	case m := <-ch1:
		if m.Kind != "ph" {
			t.Errorf("got kind %q, want ph", m.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber for aquarium 1 got nothing")
	}

	select {
	case m := <-ch2:
		t.Fatalf("subscriber for aquarium 2 got %+v", m)
	default:
	}
}

func TestBrokerCancelClosesChannel(t *testing.T) {
	b := NewBroker(nil)

	ch, cancel := b.Subscribe(1)
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	if n := b.SubscriberCount(1); n != 0 {
		t.Fatalf("subscriber count = %d, want 0", n)
	}

	// Publishing to an aquarium with no subscribers is a no-op.
	b.Publish(&domain.Measurement{AquariumID: 1})
}

func TestBrokerDropsWhenSubscriberLags(t *testing.T) {
	b := NewBroker(nil)

	ch, cancel := b.Subscribe(1)
	defer cancel()

	for i := 0; i < 100; i++ {
		b.Publish(&domain.Measurement{AquariumID: 1, Value: float64(i)})
	}

	// The buffer bounds delivery; the writer never blocked to get here.
	if len(ch) == 0 || len(ch) > 16 {
		t.Fatalf("buffered %d events, want 1..16", len(ch))
	}
}
