package wshub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"imposter/internal/game"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDropsWhenFull(t *testing.T) {
	c := &Client{PlayerID: "p1", Send: make(chan []byte, 1)}

	if !c.Enqueue(ServerMessage{Type: MessageSnapshot}) {
		t.Fatal("first enqueue should succeed")
	}
	// This should not block; message dropped
	if c.Enqueue(ServerMessage{Type: MessageError, Error: "late"}) {
		t.Fatal("enqueue on a full channel should report false")
	}

	var got ServerMessage
	require.NoError(t, json.Unmarshal(<-c.Send, &got))
	assert.Equal(t, MessageSnapshot, got.Type)
}

// pair starts a websocket server running fn for each accepted client and
// returns a dialed connection to it.
func pair(t *testing.T, fn func(ctx context.Context, c *Client)) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		fn(r.Context(), NewClient("ABCDE", "p1", conn))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func TestWritePump(t *testing.T) {
	conn := pair(t, func(ctx context.Context, c *Client) {
		c.Enqueue(ServerMessage{Type: MessageSnapshot, Snapshot: &game.Snapshot{Version: 7, Code: "ABCDE"}})
		close(c.Send)
		c.WritePump(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, MessageSnapshot, got.Type)
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, uint64(7), got.Snapshot.Version)
}

func TestReadPump_DispatchesAndReportsErrors(t *testing.T) {
	received := make(chan ClientMessage, 4)
	conn := pair(t, func(ctx context.Context, c *Client) {
		go c.WritePump(ctx)
		_ = c.ReadPump(ctx, func(_ context.Context, msg ClientMessage) error {
			received <- msg
			if msg.Type == IntentEnd {
				return errors.New("not host")
			}
			return nil
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: IntentVote, Target: "p2"}))
	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: IntentEnd}))

	first := <-received
	assert.Equal(t, IntentVote, first.Type)
	assert.Equal(t, "p2", first.Target)
	assert.Equal(t, IntentEnd, (<-received).Type)

	var reply ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, MessageError, reply.Type)
	assert.Equal(t, IntentEnd, reply.Intent)
	assert.Equal(t, "not host", reply.Error)
}

func TestReadPump_RateLimited(t *testing.T) {
	handled := make(chan struct{}, 20)
	conn := pair(t, func(ctx context.Context, c *Client) {
		go c.WritePump(ctx)
		_ = c.ReadPump(ctx, func(context.Context, ClientMessage) error {
			handled <- struct{}{}
			return nil
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for range 8 {
		require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: IntentSeen}))
	}

	var reply ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, MessageError, reply.Type)
	assert.Equal(t, ErrRateLimited.Error(), reply.Error)
	assert.LessOrEqual(t, len(handled), 6)
}
