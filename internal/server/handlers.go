package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"imposter/internal/game"
	"imposter/internal/rooms"
	"imposter/internal/words"

	"github.com/julienschmidt/httprouter"
)

type createRoomRequest struct {
	Name       string        `json:"name"`
	Config     game.Settings `json:"config"`
	SecretWord string        `json:"secretWord,omitempty"`
	HintWord   string        `json:"hintWord,omitempty"`
}

type joinRoomRequest struct {
	Name string `json:"name"`
}

type voteRequest struct {
	TargetID string `json:"targetId"`
}

type replayRequest struct {
	SecretWord string `json:"secretWord,omitempty"`
	HintWord   string `json:"hintWord,omitempty"`
}

type sessionResponse struct {
	rooms.Session
	Room game.Snapshot `json:"room"`
}

// pickWords draws the round words for settings unless the caller supplied a
// secret. Every category must exist so later rounds can draw from them. The
// hint is only drawn when the room shows hints.
func (s *Server) pickWords(settings game.Settings, secret, hint string) (string, string, error) {
	settings = settings.Normalized()
	for _, id := range settings.CategoryIDs {
		if !s.Words.Has(id) {
			return "", "", fmt.Errorf("%w: %w %q", game.ErrInvalidConfig, words.ErrUnknownCategory, id)
		}
	}
	secret = strings.TrimSpace(secret)
	if secret != "" {
		return secret, hint, nil
	}
	if err := settings.Validate(); err != nil {
		return "", "", err
	}
	secret, err := s.Words.RandomWord(settings.CategoryIDs)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", game.ErrInvalidConfig, err)
	}
	hint = ""
	if settings.ShowHint {
		hint, _ = s.Words.HintWord(secret, settings.CategoryIDs)
	}
	return secret, hint, nil
}

func (s *Server) respondSession(w http.ResponseWriter, status int, sess rooms.Session) {
	snap, err := s.Rooms.Snapshot(sess.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	setSessionCookies(w, sess)
	writeJSON(w, status, sessionResponse{Session: sess, Room: snap.ViewFor(sess.PlayerID)})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	secret, hint, err := s.pickWords(req.Config, req.SecretWord, req.HintWord)
	if err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.Rooms.CreateRoom(req.Config, secret, hint, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondSession(w, http.StatusCreated, sess)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req joinRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.Rooms.JoinRoom(ps.ByName("code"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	snap, err := s.Rooms.Snapshot(ps.ByName("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.ViewFor(playerID(r)))
}

// act runs a player operation and answers with the caller's view of the
// committed room.
func (s *Server) act(w http.ResponseWriter, r *http.Request, ps httprouter.Params, op func(code, player string) error) {
	code := rooms.NormalizeCode(ps.ByName("code"))
	player := playerID(r)
	if player == "" {
		writeError(w, fmt.Errorf("%w: missing player id", game.ErrUnknownPlayer))
		return
	}
	if err := op(code, player); err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.Rooms.Snapshot(code)
	if err != nil {
		// the operation closed the room
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap.ViewFor(player))
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.act(w, r, ps, s.Rooms.LeaveRoom)
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.act(w, r, ps, s.Rooms.StartGame)
}

func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.act(w, r, ps, s.Rooms.MarkRoleSeen)
}

func (s *Server) handleStartVoting(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.act(w, r, ps, s.Rooms.StartVoting)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req voteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.act(w, r, ps, func(code, player string) error {
		return s.Rooms.CastVote(code, player, req.TargetID)
	})
}

func (s *Server) handleEndGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.act(w, r, ps, s.Rooms.EndGame)
}

func (s *Server) handlePlayAgain(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req replayRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.act(w, r, ps, func(code, player string) error {
		return s.playAgain(code, player, req.SecretWord, req.HintWord)
	})
}

// playAgain draws fresh words from the room's own categories when the
// caller did not bring any.
func (s *Server) playAgain(code, player, secret, hint string) error {
	snap, err := s.Rooms.Snapshot(code)
	if err != nil {
		return err
	}
	secret, hint, err = s.pickWords(snap.Config, secret, hint)
	if err != nil {
		return err
	}
	return s.Rooms.PlayAgain(code, player, secret, hint)
}

type categoryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Words int    `json:"words"`
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	cats := s.Words.Categories()
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryResponse{ID: c.ID, Name: c.Name, Words: len(c.Words)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := map[string]any{"status": "ok", "rooms": s.Rooms.Count(), "connections": s.Hub.Count()}
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_error", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.Version})
}
