package rooms

import (
	"imposter/internal/broadcast"
	"imposter/internal/game"
	"math/rand/v2"
	"sync"
	"time"
)

// Room is one entry of the registry. All reads and writes of state happen
// with mu held; published snapshots are copies and need no lock.
type Room struct {
	Code      string
	CreatedAt time.Time

	mu         sync.Mutex
	state      *game.State
	version    uint64
	feed       *broadcast.Broadcaster
	rng        *rand.Rand
	lastActive time.Time
	idleSince  time.Time
	closed     bool
}

func newRoom(code string, state *game.State, rng *rand.Rand, now time.Time) *Room {
	return &Room{
		Code:       code,
		CreatedAt:  now,
		state:      state,
		feed:       broadcast.NewBroadcaster(),
		rng:        rng,
		lastActive: now,
	}
}

// commitLocked bumps the version and publishes the new state. The publish is
// non-blocking so it is safe under mu.
func (r *Room) commitLocked(now time.Time) game.Snapshot {
	r.version++
	r.lastActive = now
	if r.state.Roster.ConnectedCount() == 0 {
		if r.idleSince.IsZero() {
			r.idleSince = now
		}
	} else {
		r.idleSince = time.Time{}
	}
	snap := r.state.Snapshot(r.Code, r.version, r.CreatedAt)
	r.feed.Publish(snap)
	return snap
}

func (r *Room) closeLocked() {
	if r.closed {
		return
	}
	r.closed = true
	r.feed.Close()
}
