package game

import (
	"fmt"
	"imposter/internal/players"
	"strings"
)

type Status string

const (
	StatusWaiting = Status("waiting")
	StatusPlaying = Status("playing")
	StatusVoting  = Status("voting")
	StatusEnded   = Status("ended")
)

var transitions = map[Status][]Status{
	StatusWaiting: {StatusPlaying},
	StatusPlaying: {StatusVoting, StatusEnded},
	StatusVoting:  {StatusEnded},
	StatusEnded:   {StatusPlaying},
}

// CanTransitionTo reports whether the round state machine allows moving from s to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

type Role = players.Role

const (
	RoleNone     = players.RoleNone
	RoleImposter = players.RoleImposter
	RoleCrewmate = players.RoleCrewmate
)

type Outcome string

const (
	OutcomeImpostersWin = Outcome("imposters_win")
	OutcomeCrewmatesWin = Outcome("crewmates_win")
	OutcomeTie          = Outcome("tie")
)

const MinPlayers = 3

// Settings is the host-chosen room configuration.
type Settings struct {
	CategoryIDs       []string `json:"categoryIds"`
	ShowHint          bool     `json:"showHint"`
	EveryoneImposter  bool     `json:"everyoneImposter"`
	PlayerCountTarget int      `json:"playerCountTarget"`
}

// Normalized trims category ids and drops blanks and duplicates, keeping order.
func (s Settings) Normalized() Settings {
	out := s
	out.CategoryIDs = make([]string, 0, len(s.CategoryIDs))
	seen := make(map[string]bool, len(s.CategoryIDs))
	for _, id := range s.CategoryIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out.CategoryIDs = append(out.CategoryIDs, id)
	}
	return out
}

func (s Settings) Validate() error {
	if len(s.CategoryIDs) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidConfig)
	}
	if s.PlayerCountTarget < MinPlayers {
		return fmt.Errorf("%w: player count target must be at least %d", ErrInvalidConfig, MinPlayers)
	}
	return nil
}

// Rules are server-wide policies applied to every room.
type Rules struct {
	MaxPlayers    int
	AllowSelfVote bool
	AutoResolve   bool
}

func DefaultRules() Rules {
	return Rules{
		MaxPlayers:    16,
		AllowSelfVote: true,
		AutoResolve:   true,
	}
}

// Result is the resolved outcome of one round's vote.
type Result struct {
	Outcome        Outcome         `json:"outcome"`
	EliminatedID   string          `json:"eliminatedId,omitempty"`
	ForfeitedID    string          `json:"forfeitedId,omitempty"`
	Counts         map[string]int  `json:"counts"`
	ImposterIDs    []string        `json:"imposterIds"`
	VotedCorrectly map[string]bool `json:"votedCorrectly"`
}
