package rooms

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"imposter/internal/events"
	"imposter/internal/game"
	"imposter/internal/logging"
	"imposter/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	ReasonEmpty    = "empty"
	ReasonInactive = "inactive"
	ReasonStale    = "stale"
	ReasonShutdown = "shutdown"
)

// errUnchanged lets an operation succeed without committing a new version.
var errUnchanged = errors.New("unchanged")

type Options struct {
	MaxRooms          int
	CodeLength        int
	Rules             game.Rules
	InactivityTimeout time.Duration
	StaleTTL          time.Duration
	VotingTimeout     time.Duration
	SweepInterval     time.Duration

	Metrics *metrics.Recorder
	Bus     *events.Bus

	Now          func() time.Time
	NewRand      func() *rand.Rand
	GenerateCode func(length int) (string, error)
	NewPlayerID  func() string
}

func DefaultOptions() Options {
	return Options{
		MaxRooms:          1000,
		CodeLength:        DefaultCodeLength,
		Rules:             game.DefaultRules(),
		InactivityTimeout: 10 * time.Minute,
		StaleTTL:          2 * time.Hour,
		SweepInterval:     time.Minute,
	}
}

// Session is the handle a client keeps after creating or joining a room.
type Session struct {
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
}

// Manager owns the registry of active rooms. It is the only way to reach a
// Room, and every mutation goes through the room's critical section.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	opts  Options
	log   zerolog.Logger
}

func NewManager(opts Options) *Manager {
	if opts.CodeLength <= 0 {
		opts.CodeLength = DefaultCodeLength
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRand == nil {
		opts.NewRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}
	if opts.GenerateCode == nil {
		opts.GenerateCode = GenerateCode
	}
	if opts.NewPlayerID == nil {
		opts.NewPlayerID = func() string { return uuid.NewString() }
	}
	return &Manager{
		rooms: make(map[string]*Room),
		opts:  opts,
		log:   logging.Component("rooms"),
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func (m *Manager) get(code string) (*Room, error) {
	code = NormalizeCode(code)
	m.mu.RLock()
	r, ok := m.rooms[code]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", game.ErrRoomNotFound, code)
	}
	return r, nil
}

func (m *Manager) list() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

// CreateRoom registers a new waiting room with the host as its only player.
// The round words are supplied by the caller and stay hidden until roles
// are assigned.
func (m *Manager) CreateRoom(settings game.Settings, secretWord, hintWord, hostName string) (Session, error) {
	sess, err := m.createRoom(settings, secretWord, hintWord, hostName)
	m.opts.Metrics.Op("create", err)
	if err != nil {
		m.log.Debug().Err(err).Msg("create rejected")
		return Session{}, err
	}
	m.opts.Metrics.RoomOpened()
	m.opts.Bus.Emit(events.RoomEvent{Code: sess.Code, Kind: events.RoomOpened, At: m.opts.Now()})
	m.log.Info().Str("room", sess.Code).Str("player", sess.PlayerID).Msg("room created")
	return sess, nil
}

func (m *Manager) createRoom(settings game.Settings, secretWord, hintWord, hostName string) (Session, error) {
	state, err := game.NewState(settings, m.opts.Rules, secretWord, hintWord)
	if err != nil {
		return Session{}, err
	}
	now := m.opts.Now()
	hostID := m.opts.NewPlayerID()
	if _, err := state.AddPlayer(hostID, hostName, now); err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.opts.MaxRooms > 0 && len(m.rooms) >= m.opts.MaxRooms {
		return Session{}, fmt.Errorf("%w: %d rooms open", game.ErrCapacityExceeded, len(m.rooms))
	}

	var code string
	for range maxCodeAttempts {
		c, err := m.opts.GenerateCode(m.opts.CodeLength)
		if err != nil {
			return Session{}, fmt.Errorf("%w: %v", game.ErrGenerationFailure, err)
		}
		if _, exists := m.rooms[c]; !exists {
			code = c
			break
		}
	}
	if code == "" {
		return Session{}, fmt.Errorf("%w: no free code after %d attempts", game.ErrGenerationFailure, maxCodeAttempts)
	}

	r := newRoom(code, state, m.opts.NewRand(), now)
	r.mu.Lock()
	r.commitLocked(now)
	r.mu.Unlock()
	m.rooms[code] = r
	return Session{Code: code, PlayerID: hostID}, nil
}

// mutate runs fn inside the room's critical section. A successful fn is
// committed and broadcast before mutate returns; a failed one leaves the
// room untouched and publishes nothing.
func (m *Manager) mutate(op, code, playerID string, fn func(r *Room, now time.Time) error) error {
	r, err := m.get(code)
	if err != nil {
		m.opts.Metrics.Op(op, err)
		m.log.Debug().Err(err).Str("op", op).Msg("operation rejected")
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		err = fmt.Errorf("%w: %s", game.ErrRoomNotFound, r.Code)
		m.opts.Metrics.Op(op, err)
		return err
	}
	now := m.opts.Now()
	before := r.state.Status
	err = fn(r, now)
	if errors.Is(err, errUnchanged) {
		r.mu.Unlock()
		m.opts.Metrics.Op(op, nil)
		return nil
	}
	var snap game.Snapshot
	empty := false
	if err == nil {
		snap = r.commitLocked(now)
		empty = r.state.Roster.Count() == 0
		if empty {
			r.closeLocked()
		}
	}
	r.mu.Unlock()

	m.opts.Metrics.Op(op, err)
	if err != nil {
		m.log.Debug().Err(err).Str("op", op).Str("room", r.Code).Str("player", playerID).Msg("operation rejected")
		return err
	}

	m.log.Info().Str("op", op).Str("room", r.Code).Str("player", playerID).
		Uint64("version", snap.Version).Str("status", string(snap.Status)).Msg("committed")
	if before != game.StatusEnded && snap.Status == game.StatusEnded && snap.Result != nil {
		m.roundResolved(snap)
	}
	if empty {
		m.remove(r, ReasonEmpty)
	}
	return nil
}

func (m *Manager) roundResolved(snap game.Snapshot) {
	m.opts.Metrics.Round(string(snap.Result.Outcome))
	m.log.Info().Str("room", snap.Code).Int("round", snap.Round).
		Str("outcome", string(snap.Result.Outcome)).Str("eliminated", snap.Result.EliminatedID).
		Msg("round resolved")
}

// remove drops a closed room from the registry. r.mu must not be held.
func (m *Manager) remove(r *Room, reason string) {
	m.mu.Lock()
	current, ok := m.rooms[r.Code]
	if ok && current == r {
		delete(m.rooms, r.Code)
	}
	m.mu.Unlock()
	if !ok || current != r {
		return
	}
	m.opts.Metrics.RoomClosed(reason)
	m.opts.Bus.Emit(events.RoomEvent{Code: r.Code, Kind: events.RoomClosed, Reason: reason, At: m.opts.Now()})
	m.log.Info().Str("room", r.Code).Str("reason", reason).Msg("room closed")
}

// JoinRoom admits a new player to a waiting room. Codes are matched
// case-insensitively.
func (m *Manager) JoinRoom(code, name string) (Session, error) {
	id := m.opts.NewPlayerID()
	var sess Session
	err := m.mutate("join", code, id, func(r *Room, now time.Time) error {
		if _, err := r.state.AddPlayer(id, name, now); err != nil {
			return err
		}
		sess = Session{Code: r.Code, PlayerID: id}
		return nil
	})
	return sess, err
}

// LeaveRoom removes a player. The room is torn down when its last player
// leaves.
func (m *Manager) LeaveRoom(code, playerID string) error {
	return m.mutate("leave", code, playerID, func(r *Room, _ time.Time) error {
		_, err := r.state.RemovePlayer(playerID)
		return err
	})
}

// SetConnected records presence for a player. Repeating the current value
// is a no-op.
func (m *Manager) SetConnected(code, playerID string, connected bool) error {
	return m.mutate("presence", code, playerID, func(r *Room, _ time.Time) error {
		p := r.state.Roster.Get(playerID)
		if p == nil {
			return game.ErrUnknownPlayer
		}
		if p.Connected == connected {
			return errUnchanged
		}
		return r.state.SetConnected(playerID, connected)
	})
}

func (m *Manager) StartGame(code, actorID string) error {
	return m.mutate("start", code, actorID, func(r *Room, now time.Time) error {
		return r.state.Start(actorID, r.rng, now)
	})
}

func (m *Manager) MarkRoleSeen(code, playerID string) error {
	return m.mutate("seen", code, playerID, func(r *Room, _ time.Time) error {
		seen := false
		if p := r.state.Roster.Get(playerID); p != nil {
			seen = p.HasSeenRole
		}
		if err := r.state.MarkSeen(playerID); err != nil {
			return err
		}
		if seen {
			return errUnchanged
		}
		return nil
	})
}

func (m *Manager) StartVoting(code, actorID string) error {
	return m.mutate("voting", code, actorID, func(r *Room, now time.Time) error {
		return r.state.OpenVoting(actorID, now)
	})
}

func (m *Manager) CastVote(code, voterID, targetID string) error {
	return m.mutate("vote", code, voterID, func(r *Room, _ time.Time) error {
		return r.state.CastVote(voterID, targetID)
	})
}

func (m *Manager) EndGame(code, actorID string) error {
	return m.mutate("end", code, actorID, func(r *Room, _ time.Time) error {
		return r.state.End(actorID)
	})
}

func (m *Manager) PlayAgain(code, actorID, secretWord, hintWord string) error {
	return m.mutate("replay", code, actorID, func(r *Room, now time.Time) error {
		return r.state.PlayAgain(actorID, secretWord, hintWord, r.rng, now)
	})
}

// Snapshot returns the latest committed state of a room.
func (m *Manager) Snapshot(code string) (game.Snapshot, error) {
	r, err := m.get(code)
	if err != nil {
		return game.Snapshot{}, err
	}
	snap, ok := r.feed.Latest()
	if !ok {
		return game.Snapshot{}, fmt.Errorf("%w: %s", game.ErrRoomNotFound, r.Code)
	}
	return snap, nil
}

// Subscribe opens a snapshot stream for a room. The channel first yields the
// current state, then every later commit, and is closed when the room is
// torn down. cancel releases the subscription and is safe to call twice.
func (m *Manager) Subscribe(code string) (<-chan game.Snapshot, func(), error) {
	r, err := m.get(code)
	if err != nil {
		return nil, nil, err
	}
	ch := r.feed.Subscribe()
	m.opts.Metrics.Subscribed(1)
	m.log.Debug().Str("room", r.Code).Int("subscribers", r.feed.Count()).Msg("subscribed")
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.feed.Unsubscribe(ch)
			m.opts.Metrics.Subscribed(-1)
			m.log.Debug().Str("room", r.Code).Int("subscribers", r.feed.Count()).Msg("unsubscribed")
		})
	}
	return ch, cancel, nil
}

// Sweep closes rooms nobody has been connected to for the inactivity
// window, rooms without any commit for the stale TTL, and resolves rounds
// stuck in voting when a voting timeout is set. It returns the number of
// rooms closed.
func (m *Manager) Sweep(now time.Time) int {
	closed := 0
	for _, r := range m.list() {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			continue
		}
		reason := ""
		switch {
		case m.opts.InactivityTimeout > 0 && !r.idleSince.IsZero() && now.Sub(r.idleSince) >= m.opts.InactivityTimeout:
			reason = ReasonInactive
		case m.opts.StaleTTL > 0 && now.Sub(r.lastActive) >= m.opts.StaleTTL:
			reason = ReasonStale
		}
		if reason != "" {
			r.closeLocked()
			r.mu.Unlock()
			m.remove(r, reason)
			closed++
			continue
		}

		var resolved *game.Snapshot
		if m.opts.VotingTimeout > 0 && r.state.Status == game.StatusVoting &&
			now.Sub(r.state.VotingStartedAt) >= m.opts.VotingTimeout {
			if err := r.state.ForceResolve(); err == nil {
				snap := r.commitLocked(now)
				resolved = &snap
			}
		}
		r.mu.Unlock()
		if resolved != nil {
			m.log.Info().Str("room", r.Code).Msg("voting timed out")
			m.roundResolved(*resolved)
		}
	}
	return closed
}

// Run sweeps on the configured interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.opts.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.opts.Now()); n > 0 {
				m.log.Info().Int("closed", n).Int("open", m.Count()).Msg("swept idle rooms")
			}
		}
	}
}

// Close tears down every room, ending all subscriptions.
func (m *Manager) Close() {
	for _, r := range m.list() {
		r.mu.Lock()
		r.closeLocked()
		r.mu.Unlock()
		m.remove(r, ReasonShutdown)
	}
}
