package adapters

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"meshgate/internal/core"
	"meshgate/internal/core/engine"
)

// NATSConn is the part of *nats.Conn the adapter needs
type NATSConn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

var _ NATSConn = (*nats.Conn)(nil)

// NATSAdapter publishes the request body on a NATS subject derived from the
// route channel and the internal path: channel "orders" + "/created" ->
// subject "orders.created".
type NATSAdapter struct {
	conn NATSConn
}

// NewNATSAdapter creates the NATS publish adapter
func NewNATSAdapter(conn NATSConn) *NATSAdapter {
	return &NATSAdapter{conn: conn}
}

// Kind implements core.Adapter
func (a *NATSAdapter) Kind() engine.RouteType {
	return engine.RouteTypeNATS
}

// Invoke implements core.Adapter
func (a *NATSAdapter) Invoke(ctx *core.GatewayContext, call *core.Call) (*core.Result, error) {
	route := ctx.Route
	if route == nil {
		return nil, core.ErrConfig(fmt.Errorf("nats adapter invoked without a route"))
	}
	if !isJSON(call.Body) {
		return nil, core.ErrInvalidJSON(
			fmt.Sprintf("Invalid JSON body for event bus route %s", call.Path), nil)
	}

	name := engine.EventName(call.Path)
	subject := Subject(route.ChannelName, name)

	msg := nats.NewMsg(subject)
	msg.Data = bytes.TrimSpace(call.Body)
	if call.RequestID != "" {
		msg.Header.Set("X-Request-ID", call.RequestID)
	}

	if err := a.conn.PublishMsg(msg); err != nil {
		return nil, core.ErrForward("NATS publish failed", err)
	}
	// flush so broker-side failures and timeouts surface on this request
	if err := a.conn.FlushWithContext(ctx); err != nil {
		if isTimeout(ctx, err) {
			return nil, core.ErrForward("NATS publish timed out", err)
		}
		return nil, core.ErrForward("NATS publish failed", err)
	}

	ctx.Log.Debug("Published event", zap.String("subject", subject))

	return &core.Result{
		Status:    200,
		Published: true,
		Event:     name,
		Channel:   route.ChannelName,
	}, nil
}

// Subject joins a channel and an event name into a NATS subject
func Subject(channel, name string) string {
	if name == "" {
		return channel
	}
	return channel + "." + name
}

// ConnectNATS dials the NATS server with reconnect handling and logs
// connection state changes.
func ConnectNATS(url, clientName string, log *zap.Logger) (*nats.Conn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrlRedacted()))
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}
