package message

import (
	"context"
	"log/slog"

	"github.com/amp-labs/amp-gamecore/logger"
)

// ServerType names one end of a hop in send/receive diagnostics.
type ServerType string

const (
	ServerClient    ServerType = "client"
	ServerGateway   ServerType = "gateway"
	ServerLogin     ServerType = "login"
	ServerGame      ServerType = "game"
	ServerSocial    ServerType = "social"
	ServerCache     ServerType = "cache"
	ServerDatabase  ServerType = "database"
	ServerDiscovery ServerType = "discovery"
)

func (h *header) attrs() []slog.Attr {
	return []slog.Attr{
		slog.String("type", h.typeName()),
		slog.Int64("message_id", int64(h.messageID)),
		slog.Int64("main_id", int64(h.messageID.Main())),
		slog.Int64("sub_id", int64(h.messageID.Sub())),
		slog.Int64("unique_id", h.uniqueID),
		slog.String("op", h.op.String()),
		slog.Int("payload_bytes", len(h.payload)),
	}
}

// LogValue implements slog.LogValuer.
func (o *Outer) LogValue() slog.Value {
	return slog.GroupValue(o.attrs()...)
}

// LogValue implements slog.LogValuer. The bag is summarized by its keys.
func (in *Inner) LogValue() slog.Value {
	attrs := in.attrs()

	if keys := in.DataKeys(); len(keys) > 0 {
		attrs = append(attrs, slog.Any("data_keys", keys))
	}

	return slog.GroupValue(attrs...)
}

// LogSend records that env is being sent from src to dst.
func LogSend(ctx context.Context, env Envelope, src, dst ServerType) {
	logHop(ctx, "message sent", env, src, dst)
}

// LogReceive records that env was received by dst from src.
func LogReceive(ctx context.Context, env Envelope, src, dst ServerType) {
	logHop(ctx, "message received", env, src, dst)
}

func logHop(ctx context.Context, msg string, env Envelope, src, dst ServerType) {
	log := logger.Get(ctx)
	if !log.Enabled(ctx, slog.LevelDebug) {
		return
	}

	log.DebugContext(ctx, msg,
		"src", string(src),
		"dst", string(dst),
		"envelope", env)
}
