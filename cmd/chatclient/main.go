// chatclient is a terminal client for a STOMP-over-WebSocket chat server.
// Usage: go run ./cmd/chatclient --config configs/chatclient.example.yaml --user alice
//
// Lines typed on stdin are sent to the current room; lines starting with
// "/" are commands (see /help). Configuration can also come entirely from
// CHATLINK_* environment variables.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/chatlink/internal/api"
	"github.com/rickgao/chatlink/internal/config"
	"github.com/rickgao/chatlink/internal/session"
	"github.com/rickgao/chatlink/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	var fo flagOverrides
	flag.StringVar(&fo.url, "url", "", "STOMP WebSocket URL (overrides server.url)")
	flag.StringVar(&fo.historyURL, "history", "", "history REST base URL (overrides server.history_url)")
	flag.StringVar(&fo.room, "room", "", "room to join (overrides session.room)")
	flag.StringVar(&fo.username, "user", "", "username (overrides session.username)")
	flag.StringVar(&fo.logLevel, "log-level", "", "debug, info, warn or error")
	flag.BoolVar(&fo.noReconnect, "no-reconnect", false, "disable automatic reconnection")
	flag.StringVar(&fo.health, "health", "", "serve health/debug HTTP on this address")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(*configPath, fo, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "chatclient:", err)
		os.Exit(1)
	}
}

func run(configPath string, fo flagOverrides, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return err
	}
	fo.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	// Set up structured logging
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format, stderr)
	slog.SetDefault(logger)

	logger.Info("starting chatclient",
		"version", version.Version,
		"commit", version.Commit,
		"url", cfg.Server.URL,
		"room", cfg.Session.Room,
		"user", cfg.Session.Username,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New(sessionConfig(cfg), logger)
	defer sess.Dispose()

	var history historyFetcher
	if cfg.Server.HistoryURL != "" {
		history = api.NewClient(cfg.Server.HistoryURL,
			api.WithLogger(logger),
			api.WithTimeout(cfg.Server.HistoryTimeout),
		)
	}

	con := newConsole(ctx, sess, history, stdout, logger)
	detach := con.attach()
	defer detach()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Health.Enabled {
		srv := &http.Server{
			Addr:              cfg.Health.Addr,
			Handler:           newHealthHandler(sess),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting health server", "addr", cfg.Health.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := sess.Connect(ctx, cfg.Session.Room, cfg.Session.Username, cfg.ReconnectEnabled()); err != nil {
		// With auto-reconnect on, the session keeps retrying in the background
		// and typed messages are queued.
		logger.Warn("initial connect failed", "error", err)
		if !cfg.ReconnectEnabled() {
			fmt.Fprintf(stdout, "*** not connected: %v (use /connect to retry)\n", err)
		}
	}

	lines := readLines(stdin)
	g.Go(func() error {
		return inputLoop(gctx, con, lines)
	})

	err = g.Wait()
	sess.Disconnect(true)
	con.wait()

	if errors.Is(err, errQuit) {
		err = nil
	}
	logger.Info("chatclient stopped")
	return err
}

var errQuit = errors.New("quit")

// inputLoop feeds lines to the console until quit, EOF or cancellation.
// It returns errQuit so the errgroup tears the other goroutines down.
func inputLoop(ctx context.Context, con *console, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			if con.handle(line) {
				return errQuit
			}
		}
	}
}

// readLines scans r in the background. The goroutine is not joined: a
// blocked terminal read cannot be interrupted, and the process exits anyway.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}
