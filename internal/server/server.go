package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"imposter/internal/db"
	"imposter/internal/game"
	"imposter/internal/logging"
	"imposter/internal/metrics"
	"imposter/internal/rooms"
	"imposter/internal/words"
	"imposter/internal/wshub"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

const (
	playerCookie = "player_id"
	roomCookie   = "room_code"
	playerHeader = "X-Player-ID"

	keepAliveInterval = 25 * time.Second
)

// Catalog is the word source the server draws round words from.
type Catalog interface {
	words.Provider
	Categories() []words.Category
}

type Server struct {
	Rooms   *rooms.Manager
	Words   Catalog
	Hub     *wshub.Hub
	Metrics *metrics.Recorder
	DB      *db.DB // nil if no database configured
	Origins []string
	Version string

	log zerolog.Logger
}

func New(manager *rooms.Manager, catalog Catalog) *Server {
	return &Server{
		Rooms: manager,
		Words: catalog,
		Hub:   wshub.NewHub(),
		log:   logging.Component("server"),
	}
}

func (s *Server) Routes() http.Handler {
	r := httprouter.New()

	r.POST("/api/rooms", s.handleCreateRoom)
	r.GET("/api/rooms/:code", s.handleGetRoom)
	r.POST("/api/rooms/:code/join", s.handleJoinRoom)
	r.POST("/api/rooms/:code/leave", s.handleLeaveRoom)
	r.POST("/api/rooms/:code/start", s.handleStartGame)
	r.POST("/api/rooms/:code/seen", s.handleMarkSeen)
	r.POST("/api/rooms/:code/voting", s.handleStartVoting)
	r.POST("/api/rooms/:code/vote", s.handleCastVote)
	r.POST("/api/rooms/:code/end", s.handleEndGame)
	r.POST("/api/rooms/:code/replay", s.handlePlayAgain)
	r.GET("/api/rooms/:code/events", s.handleEvents)
	r.GET("/api/rooms/:code/ws", s.handleWebsocket)
	r.GET("/api/rooms/:code/qr", s.handleQR)
	r.GET("/api/categories", s.handleCategories)
	r.GET("/healthz", s.handleHealth)
	r.GET("/version", s.handleVersion)
	if s.Metrics != nil {
		r.Handler(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Component("server").Debug().Err(err).Msg("writing response")
	}
}

// statusFor maps room errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrRoomNotFound), errors.Is(err, game.ErrUnknownPlayer):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, game.ErrInvalidState), errors.Is(err, game.ErrNotEnoughPlayers),
		errors.Is(err, game.ErrRoomFull), errors.Is(err, game.ErrDuplicateVote):
		return http.StatusConflict
	case errors.Is(err, game.ErrCapacityExceeded), errors.Is(err, game.ErrGenerationFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, game.ErrInvalidConfig), errors.Is(err, game.ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// playerID identifies the caller by header, then the player query parameter
// (browser EventSource and WebSocket cannot set headers), then cookie.
func playerID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(playerHeader)); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.URL.Query().Get("player")); id != "" {
		return id
	}
	if c, err := r.Cookie(playerCookie); err == nil {
		return c.Value
	}
	return ""
}

func setSessionCookies(w http.ResponseWriter, sess rooms.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     playerCookie,
		Value:    sess.PlayerID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     roomCookie,
		Value:    sess.Code,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed body: %v", game.ErrInvalidConfig, err)
	}
	return nil
}
