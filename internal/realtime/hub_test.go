package realtime

import "testing"

func TestHubPublishReachesSubscriber(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Publish(1, Event{Type: EventBalanceUpdated})

	select {
	case event := <-ch:
		if event.Type != EventBalanceUpdated {
			t.Errorf("expected %s, got %s", EventBalanceUpdated, event.Type)
		}
	default:
		t.Fatal("expected event on subscriber channel")
	}
}

func TestHubPublishOnlyTargetsUser(t *testing.T) {
	hub := NewHub()
	childCh, cancelChild := hub.Subscribe(1)
	defer cancelChild()
	parentCh, cancelParent := hub.Subscribe(2)
	defer cancelParent()

	hub.Publish(2, Event{Type: EventVerificationPending})

	select {
	case <-childCh:
		t.Fatal("child should not receive parent's event")
	default:
	}

	select {
	case event := <-parentCh:
		if event.Type != EventVerificationPending {
			t.Errorf("unexpected event type %s", event.Type)
		}
	default:
		t.Fatal("parent should have received the event")
	}
}

func TestHubMultipleSubscriptionsPerUser(t *testing.T) {
	hub := NewHub()
	ch1, cancel1 := hub.Subscribe(1)
	defer cancel1()
	ch2, cancel2 := hub.Subscribe(1)
	defer cancel2()

	hub.Publish(1, Event{Type: EventQuestCompleted})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case <-ch:
		default:
			t.Errorf("subscription %d missed the event", i+1)
		}
	}
}

func TestHubCancelRemovesSubscription(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe(1)

	if got := hub.SubscriberCount(1); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}
	cancel()
	if got := hub.SubscriberCount(1); got != 0 {
		t.Errorf("expected 0 subscribers after cancel, got %d", got)
	}

	// Publishing to a user with no subscribers is a no-op
	hub.Publish(1, Event{Type: EventBonusGranted})
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	// Overfill the buffer; extra events are dropped, not blocked on
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(1, Event{Type: EventBalanceUpdated})
	}

	if len(ch) != subscriberBuffer {
		t.Errorf("expected full buffer of %d events, got %d", subscriberBuffer, len(ch))
	}
}
