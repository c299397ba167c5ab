package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/FreePeak/cortex/pkg/server"
	"github.com/gin-gonic/gin"

	"github.com/FreePeak/nl2sql-mcp-server/internal/config"
	"github.com/FreePeak/nl2sql-mcp-server/internal/delivery/mcp"
	"github.com/FreePeak/nl2sql-mcp-server/internal/interfaces/api"
	"github.com/FreePeak/nl2sql-mcp-server/internal/logger"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/core"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/db"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dbtools"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/nl2sql"
)

func main() {
	transportMode := flag.String("t", "", "Transport mode (stdio or http)")
	port := flag.Int("port", 0, "Server port for the http transport")
	toolPrefix := flag.String("prefix", "", "Prefix added to every MCP tool name")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *transportMode != "" {
		cfg.TransportMode = *transportMode
	}
	if *port != 0 {
		cfg.ServerPort = *port
	}

	// stdout carries the protocol in stdio mode
	logOptions := logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}
	if cfg.TransportMode == config.TransportStdio {
		logOptions.Output = os.Stderr
	}
	logger.Setup(logOptions)
	defer logger.Close()

	engines := db.NewManager(db.Config{
		MaxOpenConns:       cfg.Pool.MaxOpenConns,
		MaxIdleConns:       cfg.Pool.MaxIdleConns,
		ConnMaxLifetime:    cfg.Pool.ConnMaxLifetime,
		ConnMaxIdleTime:    cfg.Pool.ConnMaxIdleTime,
		KeyWithCredentials: cfg.Pool.KeyWithCredentials,
	})
	var shutdownOnce sync.Once
	shutdown := func() {
		shutdownOnce.Do(func() {
			if err := engines.Shutdown(); err != nil {
				logger.Error("Failed to dispose engines: %v", err)
			}
		})
	}
	defer shutdown()

	service := dbtools.NewService(engines, newTranslator(cfg.LLM), dbtools.WithTimeout(cfg.QueryTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting %s %s with %s transport", core.Name(), core.Version(), cfg.TransportMode)
	switch cfg.TransportMode {
	case config.TransportStdio:
		err = serveStdio(ctx, service, *toolPrefix)
	case config.TransportHTTP:
		err = serveHTTP(ctx, cfg.ServerPort, api.NewHandler(service, engines))
	default:
		err = fmt.Errorf("unknown transport mode %q", cfg.TransportMode)
	}
	shutdown()
	if err != nil {
		logger.Error("Server error: %v", err)
		_ = logger.Close()
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

// newTranslator returns nil when no LLM key is configured; generate_sql
// then reports that SQL generation is not configured.
func newTranslator(cfg config.LLMConfig) nl2sql.Translator {
	if cfg.APIKey == "" {
		logger.Warn("LLM_API_KEY is not set, SQL generation is disabled")
		return nil
	}
	translator, err := nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		logger.Warn("SQL generation is disabled: %v", err)
		return nil
	}
	return translator
}

func serveStdio(ctx context.Context, service mcp.UseCaseProvider, prefix string) error {
	mcpServer := server.NewMCPServer(core.Name(), core.Version(), log.New(core.GetLogWriter(), "", log.LstdFlags))

	registry := mcp.NewToolRegistry(mcpServer, prefix)
	if err := registry.RegisterAllTools(ctx, service); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- mcpServer.ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
		return nil
	}
}

func serveHTTP(ctx context.Context, port int, handler *api.Handler) error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
