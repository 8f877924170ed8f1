package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/merge2048/api"
	"github.com/wricardo/mcp-training/merge2048/game/config"
	"github.com/wricardo/mcp-training/merge2048/game/service"
	"github.com/wricardo/mcp-training/merge2048/game/session"
	"github.com/wricardo/mcp-training/merge2048/observability"
	"github.com/wricardo/mcp-training/merge2048/transport/mcp"
	"github.com/wricardo/mcp-training/merge2048/transport/rules"
	"github.com/wricardo/mcp-training/merge2048/transport/websocket"
)

const shutdownTimeout = 10 * time.Second

// stack is the wired session server.
type stack struct {
	hub      *websocket.Hub
	sessions *session.Manager
	handler  http.Handler
}

// newStack wires sessions, the hub and the REST API. Controllers and the hub
// run until ctx is cancelled; the caller runs the hub.
func newStack(ctx context.Context, cfg *config.Config, mcpURL string, logger *slog.Logger) *stack {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	hub := websocket.NewHub(logger)

	// The rules engine holds a single game, so it backs at most one session.
	source := rules.NewClient(cfg.Engine.BaseURL, cfg.Engine.RequestTimeout)
	sessions := session.NewManager(ctx, func(id string) *session.Controller {
		return session.NewController(id, source, session.Options{
			View:      hub.View(id),
			Timings:   cfg.Timings(),
			NoticeTTL: cfg.Animation.NoticeTTL,
			Metrics:   metrics,
			Logger:    logger,
		})
	}, metrics, session.WithLimit(1))

	gameService := service.NewGameService(sessions, logger)
	apiServer := api.NewServer(gameService, hub, registry, logger)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer)
	if mcpURL != "" {
		mux.Handle("/mcp", mcpHandler(mcp.NewClient(mcpURL)))
	}

	return &stack{hub: hub, sessions: sessions, handler: mux}
}

// mcpHandler answers single JSON-RPC messages posted to /mcp.
func mcpHandler(client *mcp.Client) http.Handler {
	mcpServer := client.GetMCPServer()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		}
	})
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if host := cmd.String("host"); host != "" {
		cfg.Server.Host = host
	}
	if port := cmd.String("port"); port != "" {
		cfg.Server.Port = port
	}
	if cmd.Bool("ngrok") {
		cfg.Ngrok.Enabled = true
	}

	logger := newLogger(cfg, os.Stderr)
	addr := cfg.Server.Addr()

	g, ctx := errgroup.WithContext(ctx)
	st := newStack(ctx, cfg, "http://"+addr, logger)
	defer st.sessions.Close()

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      st.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("starting server",
		"version", Version,
		"addr", addr,
		"engine", cfg.Engine.BaseURL,
		"rest", fmt.Sprintf("http://%s/api", addr),
		"websocket", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr),
		"mcp", fmt.Sprintf("http://%s/mcp", addr),
	)

	g.Go(func() error {
		st.hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		cleanupSessions(ctx, st.sessions, cfg.Sessions, logger)
		return nil
	})

	if cfg.Ngrok.Enabled {
		g.Go(func() error {
			return serveNgrok(ctx, cfg.Ngrok, st.handler, logger)
		})
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// cleanupSessions removes sessions idle longer than MaxAge until ctx ends.
func cleanupSessions(ctx context.Context, sessions *session.Manager, cfg config.Sessions, logger *slog.Logger) {
	if cfg.CleanupInterval <= 0 || cfg.MaxAge <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := sessions.CleanupExpiredSessions(cfg.MaxAge); removed > 0 {
				logger.Info("cleaned up expired sessions", "removed", removed)
			}
		}
	}
}

// serveNgrok exposes handler through a tunnel until ctx ends. A missing auth
// token only disables the tunnel.
func serveNgrok(ctx context.Context, cfg config.Ngrok, handler http.Handler, logger *slog.Logger) error {
	authToken := cfg.AuthToken
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTH_TOKEN")
	}
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (set NGROK_AUTHTOKEN)")
		return nil
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return nil
	}

	url := tun.URL()
	logger.Info("ngrok tunnel established",
		"url", url,
		"rest", url+"/api",
		"websocket", url+"/ws?session=<session_id>",
		"mcp", url+"/mcp",
	)

	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ngrok server shutdown", "error", err)
		}
	}()

	if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
	return nil
}

// runStdioMCP serves MCP over stdio. It drives the server at --api-url when
// one answers there; otherwise it starts an internal server on a loopback
// port and drives that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Stdout carries the protocol.
	logger := newLogger(cfg, os.Stderr)

	baseURL := cmd.String("api-url")
	if baseURL == "" {
		baseURL = "http://" + cfg.Server.Addr()
	}

	if !reachable(ctx, baseURL) {
		logger.Info("no session server found, starting internal server", "tried", baseURL)

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		st := newStack(ctx, cfg, "", logger)
		defer st.sessions.Close()
		go st.hub.Run(ctx)

		internal := &http.Server{Handler: st.handler}
		defer internal.Close()
		go func() {
			if err := internal.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", "error", err)
			}
		}()
	}

	logger.Info("MCP stdio server ready", "api", baseURL)
	if err := server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// reachable reports whether a session server answers health checks at baseURL.
func reachable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
