// Package mcp provides an MCP (Model Context Protocol) server for orderlattice.
package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/orderlattice/internal/config"
	"github.com/nvandessel/orderlattice/internal/ratelimit"
	"github.com/nvandessel/orderlattice/internal/store"
)

// Server wraps the MCP SDK server and exposes sweeps and stored runs as tools.
type Server struct {
	server       *sdk.Server
	store        store.ResultStore
	settings     *config.OrderConfig
	logger       *slog.Logger
	auditLogger  *AuditLogger
	limits       *ratelimit.Limits

	closeOnce sync.Once
	closeErr  error
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "orderlattice")
	Version string // Server version

	// Store receives saved sweeps. The server takes ownership and closes it.
	Store store.ResultStore

	// Settings supplies simulation defaults for tool calls. Nil means config.Default().
	Settings *config.OrderConfig

	// AuditDir is where audit.jsonl is written. Empty disables auditing.
	AuditDir string

	Logger *slog.Logger

	// Limits meters tool calls. Nil means ratelimit.NewLimits().
	Limits *ratelimit.Limits
}

// NewServer creates a new MCP server with orderlattice tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("mcp server requires a result store")
	}
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	limits := cfg.Limits
	if limits == nil {
		limits = ratelimit.NewLimits()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		store:        cfg.Store,
		settings:     settings,
		logger:       logger,
		limits:       limits,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Run server (blocks)
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close closes the store and audit log. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		auditErr := s.auditLogger.Close()
		s.closeErr = errors.Join(s.store.Close(), auditErr)
	})
	return s.closeErr
}
