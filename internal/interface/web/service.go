package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/buffalonetwork/custodyd/internal/core/application"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Port uint32
	// AssetType is the type tag the available-products search queries for.
	AssetType string
}

func (c Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("missing port")
	}
	if c.AssetType == "" {
		return fmt.Errorf("missing asset type tag")
	}
	return nil
}

// Service is the REST surface of the daemon.
type Service interface {
	Start() error
	Stop()
}

type service struct {
	config Config
	server *http.Server
}

func NewService(
	cfg Config, custodySvc application.CustodyService, querySvc application.QueryService,
) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}

	router := newRouter(newHandler(custodySvc, querySvc, cfg.AssetType))

	return &service{
		config: cfg,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: router,
		},
	}, nil
}

func newRouter(h *handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware, loggingMiddleware)

	router.HandleFunc("/api/product/give", h.giveProduct).Methods(http.MethodPost)
	router.HandleFunc("/api/product/return", h.returnProduct).Methods(http.MethodPost)
	router.HandleFunc("/api/product/pending", h.pendingProduct).Methods(http.MethodPost)
	router.HandleFunc("/api/product/confirm", h.confirmProduct).Methods(http.MethodPost)
	// The fixed path must be registered before the {seed} wildcard.
	router.HandleFunc("/api/products/available", h.availableProducts).Methods(http.MethodGet)
	router.HandleFunc("/api/products/{seed}", h.userProducts).Methods(http.MethodGet)
	router.HandleFunc("/api/user/{seed}", h.userKeypair).Methods(http.MethodGet)
	return router
}

func (s *service) Start() error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("web server exited")
		}
	}()
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// nolint:errcheck
	s.server.Shutdown(ctx)
	log.Debug("web server stopped")
}
