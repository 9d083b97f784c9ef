package server

import (
	"context"
	"database/sql"
	"net/http"

	"enfora/internal/constants"
	"enfora/internal/metrics"
	"enfora/internal/middleware"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// NewHandler builds the full HTTP surface: RPC procedures behind request
// logging, plus /metrics and /healthz.
func NewHandler(s *EnforaServer, db *sql.DB, m *metrics.Metrics, logger zerolog.Logger) http.Handler {
	rpc := http.NewServeMux()
	s.Register(rpc)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	rpcHandler := c.Handler(middleware.RequestID(logger)(rpc))

	mux := http.NewServeMux()
	mux.Handle(AnalyticsServicePath, rpcHandler)
	mux.Handle(LeaderboardServicePath, rpcHandler)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logger.Warn().Err(err).Msg("health check failed")
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
