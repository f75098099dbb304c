package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"imposter/internal/events"
	"imposter/internal/game"
	"imposter/internal/logging"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Publisher is the part of *nats.Conn the relay needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Source hands out snapshot feeds for open rooms.
type Source interface {
	Subscribe(code string) (<-chan game.Snapshot, func(), error)
}

// Relay mirrors room snapshots to NATS so other processes can follow rooms
// without a client connection. Only the public projection is published.
type Relay struct {
	pub    Publisher
	conn   *nats.Conn
	prefix string
	log    zerolog.Logger
	wg     sync.WaitGroup
}

func New(pub Publisher, prefix string) *Relay {
	return &Relay{
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "."),
		log:    logging.Component("relay"),
	}
}

// Connect dials url and keeps retrying in the background if the server is not
// reachable yet.
func Connect(url, prefix string) (*Relay, error) {
	r := New(nil, prefix)
	nc, err := nats.Connect(url,
		nats.Name("imposter"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectBufSize(5*1024*1024),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				r.log.Warn().Err(err).Msg("disconnected from nats")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			r.log.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected to nats")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	r.pub = nc
	r.conn = nc
	return r, nil
}

// Subject returns the subject a room's snapshots are published on.
func Subject(prefix, code string) string {
	return strings.TrimSuffix(prefix, ".") + "." + code
}

// Run starts a mirror for every room opened on rooms until ctx is done or
// rooms is closed.
func (r *Relay) Run(ctx context.Context, rooms <-chan events.RoomEvent, src Source) {
	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return
		case ev, ok := <-rooms:
			if !ok {
				r.wg.Wait()
				return
			}
			if ev.Kind != events.RoomOpened {
				r.log.Debug().Str("room", ev.Code).Str("reason", ev.Reason).Msg("room closed")
				continue
			}
			feed, cancel, err := src.Subscribe(ev.Code)
			if err != nil {
				r.log.Debug().Err(err).Str("room", ev.Code).Msg("room gone before mirror started")
				continue
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				defer cancel()
				r.Mirror(ctx, ev.Code, feed)
			}()
		}
	}
}

// Mirror publishes every snapshot on feed until the feed closes.
func (r *Relay) Mirror(ctx context.Context, code string, feed <-chan game.Snapshot) {
	subject := Subject(r.prefix, code)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-feed:
			if !ok {
				return
			}
			if err := r.publish(subject, snap); err != nil {
				r.log.Warn().Err(err).Str("room", code).Uint64("version", snap.Version).Msg("publish failed")
			}
		}
	}
}

func (r *Relay) publish(subject string, snap game.Snapshot) error {
	data, err := json.Marshal(snap.ViewFor(""))
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return r.pub.Publish(subject, data)
}

// Close flushes pending messages and closes the connection, if Connect opened one.
func (r *Relay) Close() {
	if r.conn == nil {
		return
	}
	if err := r.conn.FlushTimeout(2 * time.Second); err != nil {
		r.log.Warn().Err(err).Msg("flushing nats")
	}
	r.conn.Close()
}
