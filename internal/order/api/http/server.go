package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"comandero/internal/order/api/http/handle"
	"comandero/internal/order/app/core"
	"comandero/internal/order/app/services"
	"comandero/internal/webhook"
	"comandero/internal/xpkg/config"
	"comandero/internal/xpkg/db"
	"comandero/internal/xpkg/logger"
	"comandero/pkg/rabbitmq"

	brokermessage "comandero/internal/order/adapter/broker_message"
	database "comandero/internal/order/adapter/db"
	"comandero/internal/order/adapter/identity"
)

var ErrServerClosed = errors.New("server closed")

type Server struct {
	mux         *http.ServeMux
	cfg         *config.Config
	srv         *http.Server
	orderParams *core.OrderParams
	mylog       logger.Logger
	db          *db.DB
	feed        core.IChangeFeed
	ctx         context.Context
	appCtx      context.Context
	mu          sync.Mutex
}

func NewServer(ctx, appCtx context.Context, cfg *config.Config, orderParams *core.OrderParams, mylog logger.Logger) *Server {
	return &Server{
		ctx:         ctx,
		appCtx:      appCtx,
		cfg:         cfg,
		orderParams: orderParams,
		mylog:       mylog,
		mux:         http.NewServeMux(),
	}
}

// Run initializes dependencies and routes, then listens until the server
// stops.
func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	if err := s.initializeDatabase(); err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	mylog.Action("db_connected").Info("Successful database connection")

	if err := s.initializeChangeFeed(); err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}
	mylog.Action("mb_connected").Info("Successful message broker connection")

	s.Configure()

	s.mu.Lock()
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.orderParams.Port),
		Handler: s.mux,
	}
	s.mu.Unlock()

	mylog.Info("server is running", "port", s.orderParams.Port)
	return s.startHTTPServer()
}

// Stop provides a programmatic shutdown. Accepts a context for timeout control.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Action("graceful_shutdown_started").Info("Shutting down HTTP server...")

	if s.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.mylog.Action("graceful_shutdown_failed").Error("Failed to shut down HTTP server gracefully", err)
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	if s.feed != nil {
		if err := s.feed.Close(); err != nil {
			s.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.mylog.Action("db_close_failed").Error("Failed to close database", err)
			return fmt.Errorf("db close: %w", err)
		}
	}

	s.mylog.Action("graceful_shutdown_completed").Info("HTTP server shut down gracefully")
	return nil
}

func (s *Server) startHTTPServer() error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-s.ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) initializeDatabase() error {
	d, err := db.Start(s.appCtx, s.cfg.DB, s.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = d
	return nil
}

func (s *Server) initializeChangeFeed() error {
	rmq, err := rabbitmq.Connect(s.cfg.RMQ, s.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	s.feed = brokermessage.NewChangeFeed(rmq, s.mylog)
	return nil
}

// Configure wires repositories, services and routes.
func (s *Server) Configure() {
	orderRepo := database.NewOrderRepo(s.db, s.mylog)
	tenantRepo := database.NewTenantRepo(s.db)

	webhookURL := ""
	if s.cfg.Webhook != nil {
		webhookURL = s.cfg.Webhook.URL
	}
	notifier := webhook.NewDispatcher(webhookURL, s.mylog)

	orderService := services.NewOrderService(orderRepo, tenantRepo, s.feed, notifier, s.mylog)

	verifier := identity.NewVerifier()
	auth := NewAuthMiddleware(verifier, s.mylog)

	orderHandler := handle.NewOrderHandler(orderService, s.mylog)
	kitchenHandler := handle.NewKitchenHandler(orderService, s.mylog)

	// Ingestion comes from the upstream automation and carries no bearer
	// token; dedup happens on external_id.
	s.mux.Handle("POST /orders", orderHandler.Create())

	s.mux.Handle("GET /orders", auth.Require(orderHandler.List()))
	s.mux.Handle("GET /orders/{id}", auth.Require(orderHandler.Get()))
	s.mux.Handle("GET /orders/{id}/events", auth.Require(orderHandler.Events()))
	s.mux.Handle("PATCH /orders/{id}", auth.Require(orderHandler.Transition()))
	s.mux.Handle("PUT /orders/{id}/items", auth.Require(orderHandler.ReplaceItems()))

	// Kitchen surface is unauthenticated: the display carries no identity
	// token and may only read tickets and mark them ready.
	s.mux.Handle("GET /kitchen/orders", kitchenHandler.Tickets())
	s.mux.Handle("POST /kitchen/orders/{id}/ready", kitchenHandler.MarkReady())
}
