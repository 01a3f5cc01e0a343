package api

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dukepan/talkwire/internal/cluster"
	"github.com/dukepan/talkwire/internal/contextkey"
	"github.com/dukepan/talkwire/internal/metrics"
	"github.com/dukepan/talkwire/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin more strictly
		return true
	},
}

// WebSocketHandler upgrades the request and hands the connection to the
// relay. Each connection gets its own exclusive pub/sub connection;
// the publisher and store are shared process-wide.
func (r *Router) WebSocketHandler(w http.ResponseWriter, req *http.Request) {
	ctx, span := otel.Tracer("websocket-server").Start(req.Context(), "WebSocketConnection")
	defer span.End()

	connID := uuid.New()
	ctx = context.WithValue(ctx, contextkey.ContextKeyConnID, connID)
	span.SetAttributes(attribute.String("conn.id", connID.String()))

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("Failed to upgrade WebSocket connection: %v", err))
		return
	}

	span.SetStatus(codes.Ok, "WebSocket connection established")
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	r.log.Info(ctx, "peer connected from %s", req.RemoteAddr)

	handler := relay.NewHandler(r.log, conn, r.publisher, r.store, func() relay.ShardSub {
		return cluster.NewShardSub(r.client)
	})
	handler.Run(ctx)

	r.log.Info(ctx, "peer disconnected")
}
