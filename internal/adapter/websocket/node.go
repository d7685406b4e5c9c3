package websocket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"

	"github.com/pscheid92/kioskads/internal/adapter/metrics"
)

const channelPrefix = "overlay:"

// SessionLookup reports whether a session is mounted on this instance.
type SessionLookup interface {
	SessionExists(id uuid.UUID) bool
}

// Channel is the centrifuge channel carrying a session's instance views.
func Channel(sessionID uuid.UUID) string {
	return channelPrefix + sessionID.String()
}

func NewNode(sessions SessionLookup, wsMetrics *metrics.WebSocketMetrics, logLevel string) (*centrifuge.Node, error) {
	conf := centrifuge.Config{LogLevel: parseCentrifugeLogLevel(logLevel), LogHandler: slogHandler}
	node, err := centrifuge.New(conf)
	if err != nil {
		return nil, fmt.Errorf("create centrifuge node: %w", err)
	}

	node.OnConnecting(onConnecting(sessions))
	node.OnConnect(onConnect(wsMetrics))

	return node, nil
}

// onConnecting subscribes the client to its session channel. The credentials
// carry the session ID set by the HTTP layer.
func onConnecting(sessions SessionLookup) func(ctx context.Context, e centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
	return func(ctx context.Context, e centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
		cred, ok := centrifuge.GetCredentials(ctx)
		if !ok || cred.UserID == "" {
			return centrifuge.ConnectReply{}, centrifuge.DisconnectServerError
		}

		sessionID, err := uuid.Parse(cred.UserID)
		if err != nil {
			slog.Warn("Invalid session ID", "session_id", cred.UserID, "error", err)
			return centrifuge.ConnectReply{}, centrifuge.DisconnectServerError
		}

		if !sessions.SessionExists(sessionID) {
			slog.Warn("Connection for unknown session", "session_id", sessionID)
			return centrifuge.ConnectReply{}, centrifuge.DisconnectServerError
		}

		reply := centrifuge.ConnectReply{
			Subscriptions: map[string]centrifuge.SubscribeOptions{
				Channel(sessionID): {},
			},
		}
		return reply, nil
	}
}

func onConnect(wsMetrics *metrics.WebSocketMetrics) func(client *centrifuge.Client) {
	return func(client *centrifuge.Client) {
		slog.Debug("Client connected", "client_id", client.ID(), "session_id", client.UserID())

		if wsMetrics != nil {
			wsMetrics.ConnectedKiosks.Inc()
		}

		// Clients may only listen on their own session channel.
		client.OnSubscribe(func(e centrifuge.SubscribeEvent, cb centrifuge.SubscribeCallback) {
			if e.Channel != channelPrefix+client.UserID() {
				cb(centrifuge.SubscribeReply{}, centrifuge.ErrorPermissionDenied)
				return
			}
			cb(centrifuge.SubscribeReply{}, nil)
		})

		client.OnDisconnect(func(e centrifuge.DisconnectEvent) {
			slog.Debug("Client disconnected", "client_id", client.ID(), "reason", e.Reason)
			if wsMetrics != nil {
				wsMetrics.ConnectedKiosks.Dec()
			}
		})
	}
}

// SetupRedis switches the node to a Redis broker so views published on one
// instance reach clients connected to another.
func SetupRedis(node *centrifuge.Node, redisAddr string) error {
	shardConfig := centrifuge.RedisShardConfig{Address: redisAddr}
	shard, err := centrifuge.NewRedisShard(node, shardConfig)
	if err != nil {
		return fmt.Errorf("create redis shard: %w", err)
	}

	brokerConfig := centrifuge.RedisBrokerConfig{Prefix: "kioskads", Shards: []*centrifuge.RedisShard{shard}}
	broker, err := centrifuge.NewRedisBroker(node, brokerConfig)
	if err != nil {
		return fmt.Errorf("create redis broker: %w", err)
	}
	node.SetBroker(broker)

	return nil
}

func slogHandler(entry centrifuge.LogEntry) {
	attrs := make([]any, 0, len(entry.Fields)*2)
	for k, v := range entry.Fields {
		attrs = append(attrs, k, v)
	}
	switch entry.Level {
	case centrifuge.LogLevelDebug, centrifuge.LogLevelTrace:
		slog.Debug(entry.Message, attrs...)
	case centrifuge.LogLevelInfo:
		slog.Info(entry.Message, attrs...)
	case centrifuge.LogLevelWarn:
		slog.Warn(entry.Message, attrs...)
	case centrifuge.LogLevelError:
		slog.Error(entry.Message, attrs...)
	case centrifuge.LogLevelNone:
		// EMPTY
	}
}

func parseCentrifugeLogLevel(level string) centrifuge.LogLevel {
	switch level {
	case "debug":
		return centrifuge.LogLevelDebug
	case "warn":
		return centrifuge.LogLevelWarn
	case "error":
		return centrifuge.LogLevelError
	default:
		return centrifuge.LogLevelInfo
	}
}
