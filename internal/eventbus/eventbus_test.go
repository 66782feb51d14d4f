package eventbus

import (
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	b := New()
	defer b.Close()
	sub := b.Subscribe()
	b.Publish("hello")
	select {
	case e := <-sub:
		if e != "hello" {
			t.Fatalf("unexpected event: %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestBusSlowSubscriberDrops(t *testing.T) {
	b := New()
	defer b.Close()
	sub := b.Subscribe()
	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(i)
	}
	// The buffer is full; the extra events were dropped and publishing never blocked.
	count := 0
	for {
		select {
		case <-sub:
			count++
		default:
			if count != subscriberBuffer {
				t.Fatalf("expected %d buffered events, got %d", subscriberBuffer, count)
			}
			return
		}
	}
}

func TestBusUnsubscribeCloses(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	b.Close()
}

func TestBusPublishAfterClose(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Close()
	b.Publish("late")
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel after bus close")
	}
}
