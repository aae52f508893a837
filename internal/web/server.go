package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vitos/predictbet/internal/domain"
	"github.com/vitos/predictbet/internal/infrastructure/notify"
	"github.com/vitos/predictbet/internal/usecase"
	"go.uber.org/zap"
)

// Server is the engine's operational surface: position listing, manual
// close, pool bets, odds, and the websocket push endpoint. The product API
// proper lives elsewhere.
type Server struct {
	router    *http.ServeMux
	server    *http.Server
	positions domain.PositionRepository
	settler   *usecase.SettlementService
	odds      *usecase.OddsService
	hub       *notify.Hub
	logger    *zap.Logger
}

func NewServer(
	port int,
	positions domain.PositionRepository,
	settler *usecase.SettlementService,
	odds *usecase.OddsService,
	hub *notify.Hub,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		positions: positions,
		settler:   settler,
		odds:      odds,
		hub:       hub,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Push channel
	s.router.HandleFunc("GET /ws", s.hub.ServeWS)

	// Positions
	s.router.HandleFunc("GET /positions", s.handleListPositions)
	s.router.HandleFunc("POST /positions/{id}/close", s.handleClosePosition)

	// Match markets
	s.router.HandleFunc("POST /bets", s.handlePlaceBet)
	s.router.HandleFunc("GET /odds/{match_id}", s.handleGetOdds)
	s.router.HandleFunc("POST /matches/{match_id}/events", s.handleMatchEvent)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)
}

func (s *Server) Start() error {
	s.logger.Info("starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
