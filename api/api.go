package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/recall/api/mcp"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
)

// Engine is the part of *memory.Engine the API serves.
type Engine interface {
	AddMessage(ctx context.Context, in memory.MessageInput) (string, error)
	BuildContext(ctx context.Context, req memory.ContextRequest) (memory.ContextWindow, error)
	SearchMemories(ctx context.Context, q memory.SearchQuery) ([]memory.SearchHit, error)
	Cleanup(ctx context.Context, olderThanDays int) (memory.CleanupResult, error)
	Stats() memory.Stats
	Snapshot() *memory.Snapshot
	Restore(ctx context.Context, snap *memory.Snapshot) error
}

// Server is the API server for recording and recalling conversation memory.
type Server struct {
	config Config
	engine Engine
	logger *slog.Logger
	app    *fiber.App
	mcp    *mcp.Server
}

// NewServer creates a new API server around engine. The engine is owned by
// the caller, which closes it after Shutdown.
func NewServer(config Config, engine Engine, log *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("memory engine is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = 30
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Engine: engine,
		Noop:   config.DisableMCP,
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		engine: engine,
		logger: log,
		app:    app,
		mcp:    mcpServer,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/messages", s.handleAddMessage)
	app.Post("/v1/context", s.handleBuildContext)
	app.Get("/v1/search", s.handleSearchEndpoint)
	app.Post("/v1/cleanup", s.handleCleanup)
	app.Get("/v1/stats", s.handleStats)
	app.Get("/v1/snapshot", s.handleExportSnapshot)
	app.Post("/v1/snapshot", s.handleImportSnapshot)
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Handler exposes the API as a net/http handler.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
