package game

import (
	"slices"
	"time"
)

type PlayerView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Role        Role   `json:"role,omitempty"`
	Word        string `json:"word,omitempty"`
	HasSeenRole bool   `json:"hasSeenRole"`
	Connected   bool   `json:"connected"`
	IsHost      bool   `json:"isHost"`
	HasVoted    bool   `json:"hasVoted"`
}

// Snapshot is an immutable copy of a room at one committed version.
// Subscribers replace their view wholesale with the highest version seen.
type Snapshot struct {
	Version        uint64            `json:"version"`
	Code           string            `json:"code"`
	HostID         string            `json:"hostId"`
	Config         Settings          `json:"config"`
	Status         Status            `json:"status"`
	Round          int               `json:"round"`
	SecretWord     string            `json:"secretWord,omitempty"`
	HintWord       string            `json:"hintWord,omitempty"`
	Players        []PlayerView      `json:"players"`
	SeenCount      int               `json:"seenCount"`
	Votes          map[string]string `json:"votes"`
	Result         *Result           `json:"result,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	RoundStartedAt *time.Time        `json:"roundStartedAt,omitempty"`
}

// Snapshot copies the state so later mutations never leak into a published value.
func (s *State) Snapshot(code string, version uint64, createdAt time.Time) Snapshot {
	snap := Snapshot{
		Version:    version,
		Code:       code,
		HostID:     s.HostID,
		Config:     s.Settings,
		Status:     s.Status,
		Round:      s.Round,
		SecretWord: s.SecretWord,
		HintWord:   s.HintWord,
		Players:    make([]PlayerView, 0, s.Roster.Count()),
		SeenCount:  s.Roster.SeenCount(),
		Votes:      make(map[string]string, len(s.Votes)),
		CreatedAt:  createdAt,
	}
	snap.Config.CategoryIDs = slices.Clone(s.Settings.CategoryIDs)
	for voter, target := range s.Votes {
		snap.Votes[voter] = target
	}
	if !s.RoundStartedAt.IsZero() {
		started := s.RoundStartedAt
		snap.RoundStartedAt = &started
	}
	if s.Result != nil {
		result := *s.Result
		snap.Result = &result
	}
	for _, p := range s.Roster.List() {
		_, voted := s.Votes[p.ID]
		snap.Players = append(snap.Players, PlayerView{
			ID:          p.ID,
			Name:        p.Name,
			Color:       p.Color,
			Role:        p.Role,
			Word:        s.WordFor(p.ID),
			HasSeenRole: p.HasSeenRole,
			Connected:   p.Connected,
			IsHost:      p.ID == s.HostID,
			HasVoted:    voted,
		})
	}
	return snap
}

// ViewFor redacts what viewerID must not see: until the round has ended only
// the viewer's own role and word are present, and the round words are hidden.
func (snap Snapshot) ViewFor(viewerID string) Snapshot {
	view := snap
	view.Players = slices.Clone(snap.Players)
	if snap.Status == StatusEnded {
		return view
	}
	view.SecretWord = ""
	view.HintWord = ""
	for i := range view.Players {
		if view.Players[i].ID == viewerID {
			continue
		}
		view.Players[i].Role = RoleNone
		view.Players[i].Word = ""
	}
	return view
}

func (snap Snapshot) Player(id string) (PlayerView, bool) {
	for _, p := range snap.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerView{}, false
}
