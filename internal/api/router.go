package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dukepan/talkwire/internal/cluster"
	"github.com/dukepan/talkwire/internal/store"
	"github.com/dukepan/talkwire/internal/utils"
)

type Router struct {
	mux       *http.ServeMux
	log       *utils.Logger
	store     *store.Store
	publisher *cluster.Publisher
	client    redis.UniversalClient
}

// NewRouter creates the HTTP router: the WebSocket endpoint plus
// health and metrics.
func NewRouter(log *utils.Logger, st *store.Store, publisher *cluster.Publisher, client redis.UniversalClient) http.Handler {
	r := &Router{
		mux:       http.NewServeMux(),
		log:       log,
		store:     st,
		publisher: publisher,
		client:    client,
	}

	r.mux.HandleFunc("/healthz", r.HealthzHandler)
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/ws", r.WebSocketHandler)

	return r.mux
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// HealthzHandler reports liveness of the store and cluster connections.
func (r *Router) HealthzHandler(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Health(req.Context()); err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	if err := r.client.Ping(req.Context()).Err(); err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "redis cluster unavailable")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
