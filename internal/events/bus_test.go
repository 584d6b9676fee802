package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveOne(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed before delivery")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event within 2s")
		return Event{}
	}
}

func TestBus_DeliversInOrder(t *testing.T) {
	bus := NewBus(8)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(Event{Type: TypeCrawlStarted, Payload: map[string]int{"targets": 2}})
	bus.Publish(Event{Type: TypeCrawlTarget, Entity: "target:12"})
	bus.Publish(Event{Type: TypeCrawlFinished})

	first := receiveOne(t, ch)
	assert.Equal(t, TypeCrawlStarted, first.Type)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.At.IsZero())
	assert.Equal(t, map[string]int{"targets": 2}, first.Payload)

	second := receiveOne(t, ch)
	assert.Equal(t, TypeCrawlTarget, second.Type)
	assert.Equal(t, "target:12", second.Entity)
	assert.NotEqual(t, first.ID, second.ID)

	assert.Equal(t, TypeCrawlFinished, receiveOne(t, ch).Type)
}

func TestBus_FansOutToAllSubscribers(t *testing.T) {
	bus := NewBus(8)
	first, cancelFirst := bus.Subscribe()
	defer cancelFirst()
	second, cancelSecond := bus.Subscribe()
	defer cancelSecond()

	require.Equal(t, 2, bus.Subscribers())
	bus.Publish(Event{Type: TypeJobsBatch})

	assert.Equal(t, TypeJobsBatch, receiveOne(t, first).Type)
	assert.Equal(t, TypeJobsBatch, receiveOne(t, second).Type)
}

func TestBus_DropsSlowSubscriber(t *testing.T) {
	bus := NewBus(2)
	slow, cancelSlow := bus.Subscribe()
	defer cancelSlow()
	fast, cancelFast := bus.Subscribe()
	defer cancelFast()

	// Nobody drains slow, so the third publish overflows its queue.
	bus.Publish(Event{Type: TypeAvailabilityPass, Payload: 1})
	bus.Publish(Event{Type: TypeAvailabilityPass, Payload: 2})
	bus.Publish(Event{Type: TypeAvailabilityPass, Payload: 3})

	assert.Equal(t, int64(1), bus.Dropped())
	assert.Equal(t, 1, bus.Subscribers())

	// The survivor drains everything it buffered plus later events.
	for i := 0; i < 2; i++ {
		receiveOne(t, fast)
	}
	bus.Publish(Event{Type: TypeAvailabilityPass, Payload: 4})
	assert.Equal(t, 4, receiveOne(t, fast).Payload)

	// The dropped channel still yields its buffered two, then closes.
	receiveOne(t, slow)
	receiveOne(t, slow)
	_, ok := <-slow
	assert.False(t, ok, "dropped subscriber channel should be closed")
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus := NewBus(4)
	ch, cancel := bus.Subscribe()

	cancel()
	assert.Equal(t, 0, bus.Subscribers())
	bus.Publish(Event{Type: TypeSubmission})

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")

	// Second cancel is a no-op, also after the subscriber was removed.
	cancel()
	assert.Equal(t, int64(0), bus.Dropped())
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(4)
	bus.Publish(Event{Type: TypeAvailabilityPass})
	assert.Equal(t, 0, bus.Subscribers())
	assert.Equal(t, int64(0), bus.Dropped())
}
