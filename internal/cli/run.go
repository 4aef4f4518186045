// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/retort/internal/assistant"
	"github.com/jeranaias/retort/internal/config"
	"github.com/jeranaias/retort/internal/host"
	"github.com/jeranaias/retort/internal/llm"
	"github.com/jeranaias/retort/internal/logging"
	"github.com/jeranaias/retort/internal/overlay"
	"github.com/jeranaias/retort/internal/server"
	"github.com/jeranaias/retort/internal/ui/app"
)

const shutdownTimeout = 5 * time.Second

// =============================================================================
// OVERLAY
// =============================================================================

// runOverlay opens the overlay in the terminal and serves the local API
// until the user closes it.
func runOverlay(cmd *cobra.Command, g *globalFlags, cfg *config.Config, path string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logs, err := openLogging(cfg, nil)
	if err != nil {
		return err
	}
	defer logs.Close()
	logger := logs.Logger()
	logger.Info("retort starting",
		zap.String("version", Version),
		zap.String("config", path),
		zap.String("log", logs.FilePath()))

	zones := zone.New()
	defer zones.Close()

	sender := app.NewSender()
	defer sender.Close()

	var prog *tea.Program
	bridge := host.NewTerminal(cmd.OutOrStdout(), func() { prog.Quit() },
		host.WithMinSize(cfg.Window.MinCols, cfg.Window.MinRows),
		host.WithLogger(logs.Named("host")))

	model := app.New(app.Options{
		Config: cfg,
		Bridge: bridge,
		Sender: sender,
		Zones:  zones,
		Logger: logs.Named("app"),
	})

	opts := []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithOutput(cmd.OutOrStdout()),
	}
	if cfg.Window.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	prog = tea.NewProgram(model, opts...)
	sender.Attach(prog)

	svc, err := startServices(ctx, g, cfg, path, app.NewExecutor(sender), logs, func(c *config.Config) {
		sender.Send(app.ConfigMsg{Config: c})
	})
	if err != nil {
		return err
	}

	_, runErr := prog.Run()
	// Requests still in flight must fail fast before the server drains.
	sender.Close()
	svc.close()

	if runErr != nil && !(errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil) {
		logger.Error("overlay exited with error", zap.Error(runErr))
		return fmt.Errorf("run overlay: %w", runErr)
	}
	logger.Info("retort stopped")
	return nil
}

// =============================================================================
// HEADLESS
// =============================================================================

// runHeadless serves the API against an in-memory presenter until
// interrupted. Logs are mirrored to stderr.
func runHeadless(cmd *cobra.Command, g *globalFlags, cfg *config.Config, path string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logs, err := openLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logs.Close()
	logger := logs.Logger()

	// The server is the only way in, so it is always on here.
	cfg.Server.Enabled = true

	exec := overlay.NewSerial(overlay.NopRenderer{}, clockwork.NewRealClock(),
		overlay.WithLogger(logs.Named("presenter")),
		overlay.WithListeningMarkers(cfg.Overlay.ListeningMarkers...),
	)
	if _, err := exec.Execute(ctx, overlay.Op{Kind: overlay.OpShowListening}); err != nil {
		return err
	}

	svc, err := startServices(ctx, g, cfg, path, exec, logs, nil)
	if err != nil {
		return err
	}
	logger.Info("retort running headless", zap.String("addr", svc.addr))

	select {
	case <-ctx.Done():
	case err = <-svc.serveErr:
	}
	svc.close()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// =============================================================================
// SHARED SERVICES
// =============================================================================

// openLogging builds the root logger from the [logging] section.
func openLogging(cfg *config.Config, console io.Writer) (*logging.Logging, error) {
	dir, err := cfg.LogDir()
	if err != nil {
		return nil, err
	}
	logs, err := logging.New(logging.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Dir:       dir,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		Keep:      cfg.Logging.Keep,
		Console:   console,
	})
	if err != nil {
		return nil, fmt.Errorf("open logging: %w", err)
	}
	return logs, nil
}

// services are the components that run beside the overlay.
type services struct {
	logger   *zap.Logger
	srv      *server.Server
	addr     string
	serveErr chan error
	watcher  *config.Watcher
}

// startServices starts the server (when enabled), the assistant pipeline
// (when an API key is configured) and the config watcher.
func startServices(ctx context.Context, g *globalFlags, cfg *config.Config, path string,
	exec overlay.Executor, logs *logging.Logging, onConfig func(*config.Config)) (*services, error) {
	s := &services{
		logger:   logs.Named("services"),
		serveErr: make(chan error, 1),
	}

	if cfg.Server.Enabled {
		opts := []server.Option{
			server.WithLogger(logs.Named("server")),
			server.WithVersion(Version),
		}
		client := llm.New(cfg.LLM, llm.WithLogger(logs.Named("llm")))
		if client.IsConfigured() {
			pipeline := assistant.NewPipeline(exec, client, logs.Named("assistant"))
			opts = append(opts, server.WithPipeline(pipeline))
		} else {
			s.logger.Info("no llm api key configured, assistant disabled")
		}

		s.srv = server.New(cfg.Server, exec, opts...)
		ln, err := s.srv.Listen()
		if err != nil {
			return nil, err
		}
		s.addr = ln.Addr().String()
		go func() { s.serveErr <- s.srv.Serve(ln) }()
	}

	w, err := config.Watch(ctx, path, func(c *config.Config) {
		g.apply(c)
		if err := logs.SetLevel(c.Logging.Level); err != nil {
			s.logger.Warn("ignoring log level", zap.Error(err))
		}
		if onConfig != nil {
			onConfig(c)
		}
	}, func(err error) {
		s.logger.Warn("config reload failed", zap.Error(err))
	})
	if err != nil {
		// A missing config directory is normal before `retort config init`.
		s.logger.Debug("config watch disabled", zap.Error(err))
	} else {
		s.watcher = w
	}
	return s, nil
}

// close stops the watcher and drains the server.
func (s *services) close() {
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.logger.Warn("close watcher", zap.Error(err))
		}
	}
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Warn("server shutdown", zap.Error(err))
		}
	}
}
