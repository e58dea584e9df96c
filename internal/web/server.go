package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/yearn/vault_catalog/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router         *mux.Router
	server         *http.Server
	catalog        *usecase.CatalogService
	hub            *Hub
	defaultChainID uint64
	logger         *zap.Logger
}

func NewServer(
	port int,
	catalog *usecase.CatalogService,
	hub *Hub,
	defaultChainID uint64,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:         mux.NewRouter(),
		catalog:        catalog,
		hub:            hub,
		defaultChainID: defaultChainID,
		logger:         logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Vaults
	api.HandleFunc("/vaults", s.handleListVaults).Methods(http.MethodGet)

	// Tokens
	api.HandleFunc("/tokens/{chainID:[0-9]+}/{address}", s.handleGetToken).Methods(http.MethodGet)

	// Rewards
	api.HandleFunc("/rewards/{chainID:[0-9]+}", s.handleListRewards).Methods(http.MethodGet)

	// Holdings
	api.HandleFunc("/holdings", s.handleAddHolding).Methods(http.MethodPost)
	api.HandleFunc("/holdings/{wallet}", s.handleListHoldings).Methods(http.MethodGet)
	api.HandleFunc("/holdings/{wallet}/{chainID:[0-9]+}/{address}", s.handleDeleteHolding).Methods(http.MethodDelete)

	// Status
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	// Refresh notifications
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)
	}
}

// Handler returns the root handler with path normalization applied.
func (s *Server) Handler() http.Handler {
	return normalizePaths(s.router)
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
