package broadcast

import (
	"sync"

	"imposter/internal/game"
)

// Broadcaster fans one room's committed snapshots out to subscribers. It
// keeps only the latest snapshot: every subscriber channel holds at most one
// pending value, and a newer publish replaces an unread older one.
type Broadcaster struct {
	Mu      sync.Mutex
	Clients map[<-chan game.Snapshot]chan game.Snapshot
	latest  game.Snapshot
	hasLast bool
	closed  bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		Clients: make(map[<-chan game.Snapshot]chan game.Snapshot),
	}
}

// Subscribe returns a channel that immediately holds the latest snapshot, if
// any, followed by every later one. The channel is closed on Unsubscribe or
// when the room is torn down.
func (b *Broadcaster) Subscribe() <-chan game.Snapshot {
	ch := make(chan game.Snapshot, 1)
	b.Mu.Lock()
	defer b.Mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	if b.hasLast {
		ch <- b.latest
	}
	b.Clients[ch] = ch
	return ch
}

func (b *Broadcaster) Unsubscribe(ch <-chan game.Snapshot) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	if c, ok := b.Clients[ch]; ok {
		delete(b.Clients, ch)
		close(c)
	}
}

// Publish records s as the latest state and offers it to every subscriber.
// Snapshots older than the latest are ignored. Publish never blocks.
func (b *Broadcaster) Publish(s game.Snapshot) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	if b.closed || (b.hasLast && s.Version <= b.latest.Version) {
		return
	}
	b.latest = s
	b.hasLast = true
	for _, ch := range b.Clients {
		select {
		case ch <- s:
		default:
			// replace the unread stale snapshot
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

func (b *Broadcaster) Latest() (game.Snapshot, bool) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	return b.latest, b.hasLast
}

func (b *Broadcaster) Count() int {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	return len(b.Clients)
}

// Close ends every subscription. Later publishes are dropped and later
// subscribers receive an already closed channel.
func (b *Broadcaster) Close() {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for key, ch := range b.Clients {
		delete(b.Clients, key)
		close(ch)
	}
}
