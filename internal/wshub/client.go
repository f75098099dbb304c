package wshub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"imposter/internal/game"
	"imposter/internal/logging"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/time/rate"
)

const (
	IntentSeen   = "seen"
	IntentStart  = "start"
	IntentVoting = "voting"
	IntentVote   = "vote"
	IntentEnd    = "end"
	IntentReplay = "replay"
	IntentLeave  = "leave"

	MessageSnapshot = "snapshot"
	MessageError    = "error"

	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// ErrRateLimited is reported to a client that sends intents too quickly.
var ErrRateLimited = errors.New("rate limited")

// ClientMessage is the JSON structure received from clients.
type ClientMessage struct {
	Type   string `json:"t"`
	Target string `json:"target,omitempty"`
}

// ServerMessage is the JSON structure sent to clients.
type ServerMessage struct {
	Type     string         `json:"t"`
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
	Intent   string         `json:"intent,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Client represents a single WebSocket connection for one player in one room.
type Client struct {
	Code     string
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte

	limiter *rate.Limiter
}

func NewClient(code, playerID string, conn *websocket.Conn) *Client {
	return &Client{
		Code:     code,
		PlayerID: playerID,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		limiter:  rate.NewLimiter(2, 5),
	}
}

// Enqueue marshals msg onto Send. Non-blocking: drops if channel full.
func (c *Client) Enqueue(msg ServerMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Component("wshub").Error().Err(err).Msg("marshal error")
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// ReadPump decodes intents and passes them to handle until the connection
// fails or ctx is done. Intents over the rate limit and rejected intents are
// answered with an error message; the connection stays open.
func (c *Client) ReadPump(ctx context.Context, handle func(ctx context.Context, msg ClientMessage) error) error {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, c.Conn, &msg); err != nil {
			return err
		}
		if !c.limiter.Allow() {
			c.Enqueue(ServerMessage{Type: MessageError, Intent: msg.Type, Error: ErrRateLimited.Error()})
			continue
		}
		if err := handle(ctx, msg); err != nil {
			c.Enqueue(ServerMessage{Type: MessageError, Intent: msg.Type, Error: err.Error()})
		}
	}
}
