package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tidechat/realtime/internal/call"
	"github.com/tidechat/realtime/internal/chat"
	"github.com/tidechat/realtime/internal/config"
	"github.com/tidechat/realtime/internal/fanout"
	"github.com/tidechat/realtime/internal/hub"
	"github.com/tidechat/realtime/internal/logging"
	"github.com/tidechat/realtime/internal/presence"
	"github.com/tidechat/realtime/internal/server"
	mongostore "github.com/tidechat/realtime/internal/store/mongo"
	"github.com/tidechat/realtime/internal/upload"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{Path: *configPath})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The document store must be reachable before we accept any connection.
	store, err := mongostore.Connect(ctx, cfg.Mongo, logger.Component("mongo"))
	if err != nil {
		logger.Error("store unreachable at startup", "error", err)
		os.Exit(1)
	}

	uploader := upload.NewClient(cfg.Upload.BaseURL, cfg.Upload.Timeout, cfg.Upload.MaxBodySize)

	h := hub.New(logger.Component("hub"))
	registry := presence.NewRegistry()
	blocks := presence.NewBlockList()
	tracker := presence.NewCallTracker()

	dispatcher := fanout.NewDispatcher(store, registry, h, logger.Component("fanout"))
	pipeline := chat.NewPipeline(store, uploader, dispatcher, logger.Component("chat"))
	calls := call.NewSignaling(registry, blocks, tracker, h, logger.Component("call"))

	handlers := server.NewEventHandlers(registry, h, pipeline, calls, logger.Component("events"))
	ws := server.New(server.NewRouter(handlers), h, registry, calls, logger.Component("ws"), cfg.WebSocket)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", ws.Handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(h.GetStats())
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	h.Close()
	if err := store.Close(shutdownCtx); err != nil {
		logger.Warn("store disconnect failed", "error", err)
	}

	logger.Info("shutdown complete")
}
