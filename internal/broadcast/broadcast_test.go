package broadcast

import (
	"sync"
	"testing"
	"time"

	"imposter/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(version uint64) game.Snapshot {
	return game.Snapshot{Version: version, Code: "ABCDE"}
}

func recv(t *testing.T, ch <-chan game.Snapshot) game.Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return s
	case <-time.After(1 * time.Second):
		require.FailNow(t, "timed out waiting for snapshot")
	}
	return game.Snapshot{}
}

func TestNewBroadcaster(t *testing.T) {
	b := NewBroadcaster()
	require.NotNil(t, b)
	_, ok := b.Latest()
	assert.False(t, ok, "new broadcaster has no latest snapshot")
}

func TestBroadcaster_SubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch := b.Subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, b.Count())

	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.Count())
	_, ok := <-ch
	assert.False(t, ok, "channel is closed after unsubscribe")

	// second unsubscribe is a no-op
	b.Unsubscribe(ch)
}

func TestBroadcaster_SubscribeGetsLatest(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(snap(1))
	b.Publish(snap(2))

	ch := b.Subscribe()
	assert.Equal(t, uint64(2), recv(t, ch).Version)
	b.Unsubscribe(ch)
}

func TestBroadcaster_Publish(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	b.Publish(snap(1))

	assert.Equal(t, uint64(1), recv(t, ch1).Version)
	assert.Equal(t, uint64(1), recv(t, ch2).Version)

	b.Unsubscribe(ch1)
	b.Unsubscribe(ch2)
}

func TestBroadcaster_SlowSubscriberGetsNewest(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()

	for v := uint64(1); v <= 20; v++ {
		b.Publish(snap(v))
	}

	assert.Equal(t, uint64(20), recv(t, ch).Version)
	select {
	case s := <-ch:
		assert.Failf(t, "unexpected extra snapshot", "version %d", s.Version)
	default:
	}
	b.Unsubscribe(ch)
}

func TestBroadcaster_IgnoresStaleVersions(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(snap(5))
	b.Publish(snap(3))
	b.Publish(snap(5))

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(5), latest.Version)
}

func TestBroadcaster_PublishDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()

	done := make(chan struct{})
	go func() {
		for v := uint64(1); v <= 100; v++ {
			b.Publish(snap(v))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		require.FailNow(t, "Publish blocked on an unread subscriber")
	}
	b.Unsubscribe(ch)
}

func TestBroadcaster_OrderedDelivery(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	var versions []uint64
	go func() {
		defer wg.Done()
		for s := range ch {
			versions = append(versions, s.Version)
			if s.Version == 500 {
				return
			}
		}
	}()

	for v := uint64(1); v <= 500; v++ {
		b.Publish(snap(v))
	}
	wg.Wait()

	assert.IsIncreasing(t, versions)
	b.Close()
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	b.Close()

	_, ok := <-ch
	assert.False(t, ok, "subscriber channel is closed")

	late := b.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")

	b.Publish(snap(1))
	_, ok = b.Latest()
	assert.False(t, ok, "publish after close is dropped")
	b.Close()
}
