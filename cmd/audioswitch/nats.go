package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// ============================================================================
// NATS bridge (optional)
// ============================================================================
//   - <prefix>.<instance>.cmd      inbound event envelopes, same as IPC
//   - <prefix>.<instance>.display  outbound display updates, same as /ws
// ============================================================================

const (
	natsConnectAttempts = 5
	natsRetryDelay      = 2 * time.Second
)

// NATSConnection is the subset of *nats.Conn the bridge needs.
type NATSConnection interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Publish(subject string, data []byte) error
	Close()
}

// NATSConnectionAdapter adapts *nats.Conn to NATSConnection.
type NATSConnectionAdapter struct {
	conn *nats.Conn
}

func NewNATSConnectionAdapter(conn *nats.Conn) *NATSConnectionAdapter {
	return &NATSConnectionAdapter{conn: conn}
}

func (a *NATSConnectionAdapter) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	return a.conn.Subscribe(subject, cb)
}

func (a *NATSConnectionAdapter) Publish(subject string, data []byte) error {
	return a.conn.Publish(subject, data)
}

func (a *NATSConnectionAdapter) Close() {
	a.conn.Drain()
}

// connectNATS dials url, retrying a few times before giving up.
func connectNATS(ctx context.Context, url, name string, logger *slog.Logger) (*nats.Conn, error) {
	var (
		nc  *nats.Conn
		err error
	)
	for i := 0; i < natsConnectAttempts; i++ {
		nc, err = nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
		if err == nil {
			logger.Info("connected to NATS", "url", url)
			return nc, nil
		}
		logger.Warn("NATS connect failed", "attempt", i+1, "max", natsConnectAttempts, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(natsRetryDelay):
		}
	}
	return nil, fmt.Errorf("connect to NATS after %d attempts: %w", natsConnectAttempts, err)
}

// NATSBridge relays events and display updates over NATS subjects.
type NATSBridge struct {
	conn     NATSConnection
	events   chan<- Event
	logger   *slog.Logger
	cmdSubj  string
	dispSubj string
}

func NewNATSBridge(conn NATSConnection, prefix, instanceID string, events chan<- Event, logger *slog.Logger) *NATSBridge {
	return &NATSBridge{
		conn:     conn,
		events:   events,
		logger:   logger,
		cmdSubj:  prefix + "." + instanceID + ".cmd",
		dispSubj: prefix + "." + instanceID + ".display",
	}
}

// Run subscribes to the command subject and publishes display updates until
// ctx is canceled or src is closed.
func (b *NATSBridge) Run(ctx context.Context, src <-chan DisplayUpdate) error {
	sub, err := b.conn.Subscribe(b.cmdSubj, func(msg *nats.Msg) {
		resp := dispatchEvent(ctx, msg.Data, b.events)
		if resp.Status != "ok" {
			b.logger.Warn("NATS command rejected", "subject", msg.Subject, "error", resp.Error)
		}
		if msg.Reply == "" {
			return
		}
		data, mErr := json.Marshal(resp)
		if mErr != nil {
			b.logger.Warn("NATS reply marshal failed", "error", mErr)
			return
		}
		if rErr := msg.Respond(data); rErr != nil {
			b.logger.Warn("NATS reply failed", "error", rErr)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.cmdSubj, err)
	}
	defer func() {
		if sub != nil {
			_ = sub.Unsubscribe()
		}
	}()

	b.logger.Info("NATS bridge running", "cmd", b.cmdSubj, "display", b.dispSubj)

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-src:
			if !ok {
				return nil
			}
			typ, data := convertUpdate(u)
			msg, mErr := marshalEnvelope(typ, u.At, data)
			if mErr != nil {
				b.logger.Warn("NATS display marshal failed", "error", mErr, "type", typ)
				continue
			}
			if pErr := b.conn.Publish(b.dispSubj, msg); pErr != nil {
				b.logger.Warn("NATS publish failed", "subject", b.dispSubj, "error", pErr)
			}
		}
	}
}
