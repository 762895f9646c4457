package events

import "testing"

func TestBusDeliversToSubscribersOfType(t *testing.T) {
	bus := NewBus()
	notices := bus.Subscribe(EventNotice)
	states := bus.Subscribe(EventPlaybackState)

	bus.Publish(EventNotice, Payload{"message": "hi"})

	select {
	case p := <-notices:
		if p["message"] != "hi" {
			t.Fatalf("payload = %+v", p)
		}
	default:
		t.Fatal("notice not delivered")
	}
	select {
	case p := <-states:
		t.Fatalf("unexpected delivery %+v", p)
	default:
	}
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventNotice)
	for i := 0; i < cap(sub)+10; i++ {
		bus.Publish(EventNotice, Payload{"i": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("buffered %d, want %d", len(sub), cap(sub))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventNotice)
	bus.Unsubscribe(EventNotice, sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel still open")
	}
	bus.Publish(EventNotice, Payload{})
}
