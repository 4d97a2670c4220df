package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New[int](16)
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()

	b.Publish(42)

	require.Equal(t, 42, <-sub1.C)
	require.Equal(t, 42, <-sub2.C)
}

func TestPublishDropsForSlowReceiver(t *testing.T) {
	b := New[int](2)
	sub := b.Subscribe()

	// Fill the subscriber's buffer and then some: the publisher must not
	// block regardless of how far behind the subscriber is.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	// The subscriber still observes some values, just not all of them.
	require.NotEmpty(t, sub.C)
}

func TestUnsubscribeRemovesSubscriber(t *testing.T) {
	b := New[int](4)
	sub := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	sub.Unsubscribe()
	require.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub.C
	require.False(t, ok, "channel should be closed after Unsubscribe")
}
