package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"imposter/internal/game"
	"imposter/internal/rooms"
	"imposter/internal/wshub"

	"github.com/coder/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var errUnknownIntent = errors.New("unknown intent")

// connect marks a player present on their first open stream.
func (s *Server) connect(code, player string) {
	if player == "" || !s.Hub.Register(code, player) {
		return
	}
	if err := s.Rooms.SetConnected(code, player, true); err != nil {
		s.log.Debug().Err(err).Str("room", code).Str("player", player).Msg("presence not recorded")
	}
}

// disconnect marks a player away once their last stream closes.
func (s *Server) disconnect(code, player string) {
	if player == "" || !s.Hub.Unregister(code, player) {
		return
	}
	if err := s.Rooms.SetConnected(code, player, false); err != nil && !errors.Is(err, game.ErrRoomNotFound) {
		s.log.Debug().Err(err).Str("room", code).Str("player", player).Msg("presence not recorded")
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := rooms.NormalizeCode(ps.ByName("code"))
	player := playerID(r)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	feed, cancel, err := s.Rooms.Subscribe(code)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.connect(code, player)
	defer s.disconnect(code, player)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case snap, ok := <-feed:
			if !ok {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(snap.ViewFor(player))
			if err != nil {
				s.log.Error().Err(err).Str("room", code).Msg("encoding snapshot")
				return
			}
			fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", snap.Version, data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := rooms.NormalizeCode(ps.ByName("code"))
	player := playerID(r)

	feed, cancel, err := s.Rooms.Subscribe(code)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.Origins})
	if err != nil {
		s.log.Debug().Err(err).Str("room", code).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	client := wshub.NewClient(code, player, conn)
	s.connect(code, player)
	defer s.disconnect(code, player)

	go client.WritePump(ctx)
	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-feed:
				if !ok {
					conn.Close(websocket.StatusNormalClosure, "room closed")
					return
				}
				view := snap.ViewFor(player)
				if !client.Enqueue(wshub.ServerMessage{Type: wshub.MessageSnapshot, Snapshot: &view}) {
					// a client this far behind reconnects and gets the latest state
					conn.Close(websocket.StatusPolicyViolation, "too slow")
					return
				}
			}
		}
	}()

	err = client.ReadPump(ctx, func(_ context.Context, msg wshub.ClientMessage) error {
		return s.dispatch(code, player, msg)
	})
	if err != nil && websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
		s.log.Debug().Err(err).Str("room", code).Str("player", player).Msg("websocket closed")
	}
}

// dispatch applies a websocket intent as the connected player.
func (s *Server) dispatch(code, player string, msg wshub.ClientMessage) error {
	if player == "" {
		return fmt.Errorf("%w: missing player id", game.ErrUnknownPlayer)
	}
	switch msg.Type {
	case wshub.IntentSeen:
		return s.Rooms.MarkRoleSeen(code, player)
	case wshub.IntentStart:
		return s.Rooms.StartGame(code, player)
	case wshub.IntentVoting:
		return s.Rooms.StartVoting(code, player)
	case wshub.IntentVote:
		return s.Rooms.CastVote(code, player, msg.Target)
	case wshub.IntentEnd:
		return s.Rooms.EndGame(code, player)
	case wshub.IntentReplay:
		return s.playAgain(code, player, "", "")
	case wshub.IntentLeave:
		return s.Rooms.LeaveRoom(code, player)
	default:
		return fmt.Errorf("%w: %q", errUnknownIntent, msg.Type)
	}
}

// handleQR renders a PNG QR code of the join link for a room.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := rooms.NormalizeCode(ps.ByName("code"))
	if _, err := s.Rooms.Snapshot(code); err != nil {
		writeError(w, err)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	link := scheme + "://" + r.Host + "/?room=" + code

	const qrSize = 320
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}
