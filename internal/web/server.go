package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vitos/signal_copier/internal/domain"
	"go.uber.org/zap"
)

// Queries are the read operations the HTTP API exposes.
type Queries interface {
	Correlations(ctx context.Context) (map[int64][]string, error)
	OpenPositions(ctx context.Context, symbol string) ([]*domain.Position, error)
}

type Server struct {
	router  *http.ServeMux
	server  *http.Server
	queries Queries
	hub     *EventHub
	webhook http.Handler
	logger  *zap.Logger
}

// NewServer wires the routes. webhook may be nil when the bot long-polls.
func NewServer(
	port int,
	queries Queries,
	hub *EventHub,
	webhook http.Handler,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		queries: queries,
		hub:     hub,
		webhook: webhook,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	// Correlations and live positions
	s.router.HandleFunc("GET /api/correlations", s.handleCorrelations)
	s.router.HandleFunc("GET /api/open-trades", s.handleOpenTrades)

	// Report feed
	s.router.HandleFunc("GET /ws/events", s.hub.ServeWS)

	if s.webhook != nil {
		s.router.Handle("POST /telegram/webhook", s.webhook)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
