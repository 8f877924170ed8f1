// Command merge2048 is a 2048 client for a remote rules engine.
//
// It supports three modes:
//  1. "play" (default) – plays one game in the terminal with animated slides
//  2. "serve" – hosts client sessions behind a REST API, a WebSocket stream
//     of animation frames and an /mcp HTTP endpoint
//  3. "stdio-mcp" – runs an MCP stdio server against a serve instance,
//     starting an internal one when none is reachable
//
// Settings come from a YAML profile in the config directory, overridden by
// environment variables (a .env file is loaded first) and flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/merge2048/game/config"
	"github.com/wricardo/mcp-training/merge2048/game/session"
	"github.com/wricardo/mcp-training/merge2048/transport/rules"
	"github.com/wricardo/mcp-training/merge2048/tui"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "merge2048"
)

// localSessionID names the single session driven by the terminal UI.
const localSessionID = "local"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    AppName,
		Usage:   "animated 2048 client for a remote rules engine",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "directory containing configuration profiles",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:    "profile",
				Value:   "default",
				Usage:   "configuration profile to load",
				Sources: cli.EnvVars("MERGE2048_PROFILE"),
			},
			&cli.StringFlag{
				Name:  "engine-url",
				Usage: "rules engine base URL (overrides the profile)",
			},
		},
		DefaultCommand: "play",
		Commands: []*cli.Command{
			{
				Name:  "play",
				Usage: "play in the terminal",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "show the game the engine already holds instead of starting a new one",
					},
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "write logs to this file (logs are discarded otherwise)",
					},
				},
				Action: runPlay,
			},
			{
				Name:  "serve",
				Usage: "host sessions over HTTP, WebSocket and MCP",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "host", Usage: "listen host (overrides the profile)"},
					&cli.StringFlag{Name: "port", Usage: "listen port (overrides the profile)"},
					&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel"},
				},
				Action: runServe,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp"},
				Usage:   "serve MCP over stdio",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Usage:   "session server to drive (default: the profile's server address)",
						Sources: cli.EnvVars("MERGE2048_API_URL"),
					},
				},
				Action: runStdioMCP,
			},
		},
	}
}

// loadConfig resolves the profile and applies flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	manager, err := config.NewManager(cmd.String("config-dir"))
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	loaded, err := manager.Load(cmd.String("profile"))
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	// The manager caches profiles; overrides go on a copy.
	cfg := *loaded
	if url := cmd.String("engine-url"); url != "" {
		cfg.Engine.BaseURL = url
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func runPlay(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI.
	logOut := io.Discard
	if path := cmd.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := newLogger(cfg, logOut)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := tui.NewView()
	ctrl := session.NewController(localSessionID, rules.NewClient(cfg.Engine.BaseURL, cfg.Engine.RequestTimeout), session.Options{
		View:      view,
		Timings:   cfg.Timings(),
		NoticeTTL: cfg.Animation.NoticeTTL,
		Logger:    logger,
	})
	go ctrl.Run(ctx)

	logger.Info("starting game", "engine", cfg.Engine.BaseURL, "resume", cmd.Bool("resume"))

	model := tui.NewModel(ctx, ctrl, tui.Options{
		Resume:  cmd.Bool("resume"),
		Timings: cfg.Timings(),
		Logger:  logger,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	view.Attach(p, ctrl.Done())

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}
