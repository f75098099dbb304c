package players

import (
	"imposter/internal/utility"
	"time"
)

// Roster keeps a room's players in join order. It is not safe for concurrent
// use; the owning room serializes access.
type Roster struct {
	order   []string
	players map[string]*Player
}

func NewRoster() *Roster {
	return &Roster{
		players: make(map[string]*Player),
	}
}

// Add appends a connected player with no role. Adding an id that is already
// present returns the existing player unchanged.
func (r *Roster) Add(id string, name string, joinedAt time.Time) *Player {
	if p, ok := r.players[id]; ok {
		return p
	}
	player := &Player{
		ID:        id,
		Name:      name,
		Color:     utility.RandomColorHex(),
		Connected: true,
		JoinedAt:  joinedAt,
	}
	r.players[id] = player
	r.order = append(r.order, id)
	return player
}

func (r *Roster) Get(id string) *Player {
	return r.players[id]
}

func (r *Roster) Has(id string) bool {
	_, ok := r.players[id]
	return ok
}

func (r *Roster) Remove(id string) bool {
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns the players in join order.
func (r *Roster) List() []*Player {
	list := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.players[id])
	}
	return list
}

func (r *Roster) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

func (r *Roster) Count() int {
	return len(r.order)
}

// First returns the earliest-joined remaining player, or nil when empty.
func (r *Roster) First() *Player {
	if len(r.order) == 0 {
		return nil
	}
	return r.players[r.order[0]]
}

func (r *Roster) ConnectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (r *Roster) SeenCount() int {
	n := 0
	for _, p := range r.players {
		if p.HasSeenRole {
			n++
		}
	}
	return n
}

func (r *Roster) SetSeen(id string, seen bool) *Player {
	if p, ok := r.players[id]; ok {
		p.HasSeenRole = seen
		return p
	}
	return nil
}

func (r *Roster) SetConnected(id string, connected bool) *Player {
	if p, ok := r.players[id]; ok {
		p.Connected = connected
		return p
	}
	return nil
}

func (r *Roster) SetRole(id string, role Role) *Player {
	if p, ok := r.players[id]; ok {
		p.Role = role
		return p
	}
	return nil
}

// ResetRound clears every role and role acknowledgement.
func (r *Roster) ResetRound() {
	for _, p := range r.players {
		p.Role = RoleNone
		p.HasSeenRole = false
	}
}
