package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/vesting/internal/model"
)

// Message is one ledger event as delivered by the bus.
type Message struct {
	// ID is the Nats-Msg-Id header set by the publisher (see MsgID); empty
	// when the sender set none.
	ID    string
	Topic string
	Data  []byte
}

// MsgID is the bus identity of a recorded event: its operation ID and its
// position in the log, e.g. "op-3kTMd92jfaLq/17". Bus consumers use it to
// drop duplicates and to line messages up with the persisted log.
func MsgID(e *model.Event) string {
	id := strconv.FormatInt(e.ID, 10)
	if e.OpID == "" {
		return id
	}
	return e.OpID + "/" + id
}

const closeFlushTimeout = 2 * time.Second

// connect dials NATS with unlimited reconnects; opts are applied after the
// defaults so callers can override them or add handlers.
func connect(url, name string, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes committed ledger events on a subject equal to their
// topic. Messages sent while the connection is down are buffered by the
// client and flushed on reconnect.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to url. Disconnects and reconnects are logged
// through slog unless opts replace the handlers.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	handlers := []nats.Option{
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("event bus disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("event bus reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := connect(url, "vesting-publisher", append(handlers, opts...)...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish sends e as JSON with its MsgID in the Nats-Msg-Id header. Only
// recorded events (ID > 0) are published.
func (p *NATSPublisher) Publish(ctx context.Context, e *model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e == nil || e.ID <= 0 || e.Topic == "" {
		return errors.New("publish: event is not recorded")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling event %d: %w", e.ID, err)
	}
	msg := nats.NewMsg(e.Topic)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, MsgID(e))
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing event %d on %s: %w", e.ID, e.Topic, err)
	}
	return nil
}

// Close flushes buffered events, waiting up to closeFlushTimeout, and closes
// the connection.
func (p *NATSPublisher) Close() error {
	err := p.conn.FlushTimeout(closeFlushTimeout)
	p.conn.Close()
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("flushing events: %w", err)
	}
	return nil
}

// NATSSubscriber receives ledger events from NATS subjects.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to url with the same reconnect policy as the
// publisher. Extra options (handlers) are appended.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, "vesting-watch", opts...)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe delivers messages for topic, which may use NATS wildcards such as
// "vesting.>". The returned cancel unsubscribes and closes the channel.
// Messages are dropped rather than blocking the client when the channel is
// full.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan Message, func(), error) {
	ch := make(chan Message, 64)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		m := Message{Topic: msg.Subject, Data: msg.Data}
		if msg.Header != nil {
			m.ID = msg.Header.Get(nats.MsgIdHdr)
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- m:
		default:
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// The subscription must reach the server before we return, or events
	// published on other connections may be missed.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			defer mu.Unlock()
			closed = true
			for {
				select {
				case <-ch:
				default:
					close(ch)
					return
				}
			}
		})
	}
	return ch, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
