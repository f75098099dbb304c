package game

import (
	"fmt"
	"imposter/internal/players"
	"math/rand/v2"
	"strings"
	"time"
)

// State is the authoritative record of one room's round. Every method either
// applies its whole change or returns an error and leaves State untouched.
// State is not safe for concurrent use; rooms.Room serializes access.
type State struct {
	Settings        Settings
	Rules           Rules
	Status          Status
	HostID          string
	Roster          *players.Roster
	SecretWord      string
	HintWord        string
	Votes           map[string]string
	Result          *Result
	Round           int
	RoundStartedAt  time.Time
	VotingStartedAt time.Time
}

func NewState(settings Settings, rules Rules, secretWord, hintWord string) (*State, error) {
	settings = settings.Normalized()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if rules.MaxPlayers > 0 && settings.PlayerCountTarget > rules.MaxPlayers {
		return nil, fmt.Errorf("%w: player count target exceeds room limit of %d", ErrInvalidConfig, rules.MaxPlayers)
	}
	secretWord = strings.TrimSpace(secretWord)
	if secretWord == "" {
		return nil, fmt.Errorf("%w: secret word is required", ErrInvalidConfig)
	}
	s := &State{
		Settings:   settings,
		Rules:      rules,
		Status:     StatusWaiting,
		Roster:     players.NewRoster(),
		SecretWord: secretWord,
		Votes:      make(map[string]string),
	}
	s.HintWord = hintFor(settings, secretWord, hintWord)
	return s, nil
}

// hintFor keeps a hint only when hints are shown and it does not give the
// secret away.
func hintFor(settings Settings, secretWord, hintWord string) string {
	hintWord = strings.TrimSpace(hintWord)
	if !settings.ShowHint || strings.EqualFold(hintWord, secretWord) {
		return ""
	}
	return hintWord
}

// setStatus moves the round along the transition table.
func (s *State) setStatus(next Status) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, s.Status, next)
	}
	s.Status = next
	return nil
}

// AddPlayer admits a player while the room is waiting. The first player
// becomes host.
func (s *State) AddPlayer(id, name string, now time.Time) (*players.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if s.Status != StatusWaiting {
		return nil, fmt.Errorf("%w: cannot join while %s", ErrInvalidState, s.Status)
	}
	if s.Rules.MaxPlayers > 0 && s.Roster.Count() >= s.Rules.MaxPlayers {
		return nil, ErrRoomFull
	}
	p := s.Roster.Add(id, name, now)
	if s.HostID == "" {
		s.HostID = id
	}
	return p, nil
}

// RemovePlayer drops a player with their votes and any votes cast against
// them, promoting the next-joined player when the host leaves. When the last
// imposter leaves a running round, the crewmates win by forfeit. It reports
// whether the roster is now empty.
func (s *State) RemovePlayer(id string) (bool, error) {
	p := s.Roster.Get(id)
	if p == nil {
		return false, ErrUnknownPlayer
	}
	wasImposter := p.Role == RoleImposter
	s.Roster.Remove(id)
	delete(s.Votes, id)
	for voter, target := range s.Votes {
		if target == id {
			delete(s.Votes, voter)
		}
	}

	if s.Roster.Count() == 0 {
		s.HostID = ""
		return true, nil
	}
	if s.HostID == id {
		s.HostID = s.Roster.First().ID
	}

	inRound := s.Status == StatusPlaying || s.Status == StatusVoting
	switch {
	case inRound && wasImposter && len(s.Imposters()) == 0:
		if err := s.forfeit(id); err != nil {
			return false, err
		}
	case s.Status == StatusVoting && s.Rules.AutoResolve && s.AllConnectedVoted():
		if err := s.resolve(); err != nil {
			return false, err
		}
	}
	return false, nil
}

// SetConnected records presence. Votes already cast are kept when a player
// drops, but a disconnected player no longer blocks auto resolution.
func (s *State) SetConnected(id string, connected bool) error {
	if s.Roster.SetConnected(id, connected) == nil {
		return ErrUnknownPlayer
	}
	if !connected && s.Status == StatusVoting && s.Rules.AutoResolve && s.AllConnectedVoted() {
		return s.resolve()
	}
	return nil
}

func (s *State) Start(actorID string, rng *rand.Rand, now time.Time) error {
	if s.Status != StatusWaiting {
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, s.Status)
	}
	if actorID != s.HostID {
		return ErrNotHost
	}
	if s.Roster.Count() < MinPlayers {
		return fmt.Errorf("%w: need at least %d, have %d", ErrNotEnoughPlayers, MinPlayers, s.Roster.Count())
	}
	return s.beginRound(rng, now)
}

func (s *State) MarkSeen(playerID string) error {
	if s.Status != StatusPlaying && s.Status != StatusVoting {
		return fmt.Errorf("%w: no role to acknowledge while %s", ErrInvalidState, s.Status)
	}
	if s.Roster.SetSeen(playerID, true) == nil {
		return ErrUnknownPlayer
	}
	return nil
}

func (s *State) OpenVoting(actorID string, now time.Time) error {
	if s.Status != StatusPlaying {
		return fmt.Errorf("%w: cannot open voting while %s", ErrInvalidState, s.Status)
	}
	if actorID != s.HostID {
		return ErrNotHost
	}
	if err := s.setStatus(StatusVoting); err != nil {
		return err
	}
	s.Votes = make(map[string]string)
	s.VotingStartedAt = now
	return nil
}

// CastVote records an immutable vote. When auto resolution is on and the
// vote completes the connected roster, the round resolves in the same step.
func (s *State) CastVote(voterID, targetID string) error {
	if s.Status != StatusVoting {
		return fmt.Errorf("%w: cannot vote while %s", ErrInvalidState, s.Status)
	}
	if !s.Roster.Has(voterID) || !s.Roster.Has(targetID) {
		return ErrUnknownPlayer
	}
	if _, voted := s.Votes[voterID]; voted {
		return ErrDuplicateVote
	}
	if voterID == targetID && !s.Rules.AllowSelfVote {
		return fmt.Errorf("%w: self votes are disabled", ErrInvalidState)
	}
	s.Votes[voterID] = targetID

	if s.Rules.AutoResolve && s.AllConnectedVoted() {
		return s.resolve()
	}
	return nil
}

// End is the host's explicit vote resolution.
func (s *State) End(actorID string) error {
	if s.Status != StatusVoting {
		return fmt.Errorf("%w: cannot end while %s", ErrInvalidState, s.Status)
	}
	if actorID != s.HostID {
		return ErrNotHost
	}
	return s.resolve()
}

// ForceResolve ends a voting round without host action.
func (s *State) ForceResolve() error {
	if s.Status != StatusVoting {
		return fmt.Errorf("%w: cannot resolve while %s", ErrInvalidState, s.Status)
	}
	return s.resolve()
}

// PlayAgain starts a fresh round with newly drawn words.
func (s *State) PlayAgain(actorID, secretWord, hintWord string, rng *rand.Rand, now time.Time) error {
	if s.Status != StatusEnded {
		return fmt.Errorf("%w: cannot replay while %s", ErrInvalidState, s.Status)
	}
	if actorID != s.HostID {
		return ErrNotHost
	}
	secretWord = strings.TrimSpace(secretWord)
	if secretWord == "" {
		return fmt.Errorf("%w: secret word is required", ErrInvalidConfig)
	}
	if s.Roster.Count() < MinPlayers {
		return fmt.Errorf("%w: need at least %d, have %d", ErrNotEnoughPlayers, MinPlayers, s.Roster.Count())
	}
	if err := s.beginRound(rng, now); err != nil {
		return err
	}
	s.SecretWord = secretWord
	s.HintWord = hintFor(s.Settings, secretWord, hintWord)
	return nil
}

func (s *State) beginRound(rng *rand.Rand, now time.Time) error {
	if err := s.setStatus(StatusPlaying); err != nil {
		return err
	}
	s.Roster.ResetRound()
	roles := AssignRoles(s.Roster.IDs(), s.Settings.EveryoneImposter, rng)
	for id, role := range roles {
		s.Roster.SetRole(id, role)
	}
	s.Votes = make(map[string]string)
	s.Result = nil
	s.Round++
	s.RoundStartedAt = now
	s.VotingStartedAt = time.Time{}
	return nil
}

func (s *State) resolve() error {
	if err := s.setStatus(StatusEnded); err != nil {
		return err
	}
	result := Tally(s.Votes, s.Imposters())
	s.Result = &result
	return nil
}

// forfeit ends the round after the last imposter left. Votes already cast
// are kept for display; nobody is eliminated.
func (s *State) forfeit(imposterID string) error {
	if err := s.setStatus(StatusEnded); err != nil {
		return err
	}
	result := Tally(s.Votes, map[string]bool{imposterID: true})
	result.Outcome = OutcomeCrewmatesWin
	result.EliminatedID = ""
	result.ForfeitedID = imposterID
	s.Result = &result
	return nil
}

// Imposters returns the ids of players holding the imposter role.
func (s *State) Imposters() map[string]bool {
	out := make(map[string]bool)
	for _, p := range s.Roster.List() {
		if p.Role == RoleImposter {
			out[p.ID] = true
		}
	}
	return out
}

// AllConnectedVoted is true once at least one vote exists and every
// connected player has voted.
func (s *State) AllConnectedVoted() bool {
	if len(s.Votes) == 0 {
		return false
	}
	for _, p := range s.Roster.List() {
		if !p.Connected {
			continue
		}
		if _, ok := s.Votes[p.ID]; !ok {
			return false
		}
	}
	return true
}

// WordFor is what a player is shown for the current round: the secret word
// for crewmates, the hint (if enabled) for imposters.
func (s *State) WordFor(playerID string) string {
	p := s.Roster.Get(playerID)
	if p == nil {
		return ""
	}
	switch p.Role {
	case RoleCrewmate:
		return s.SecretWord
	case RoleImposter:
		if s.Settings.ShowHint {
			return s.HintWord
		}
	}
	return ""
}
