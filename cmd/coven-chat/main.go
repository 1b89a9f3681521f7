// ABOUTME: Terminal chat client for coven-chat-gateway agents
// ABOUTME: Sends queries over HTTP and renders the realtime event stream into the active session

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"github.com/2389/coven-chat/internal/client"
	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/engine"
	"github.com/2389/coven-chat/internal/index"
	"github.com/2389/coven-chat/internal/logging"
)

// getConfigPath returns the client config path: COVEN_CHAT_CONFIG, then
// $XDG_CONFIG_HOME/coven-chat/client.toml, then ~/.config/coven-chat/client.toml.
func getConfigPath() string {
	if p := os.Getenv("COVEN_CHAT_CONFIG"); p != "" {
		return p
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "client.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "coven-chat", "client.toml")
}

// getToken returns the bearer token from COVEN_CHAT_TOKEN or the config.
func getToken(cfg *config.ClientConfig) (string, error) {
	if token := os.Getenv("COVEN_CHAT_TOKEN"); token != "" {
		return token, nil
	}
	return cfg.ResolveToken()
}

func main() {
	// A local .env may supply COVEN_CHAT_TOKEN or COVEN_CHAT_CONFIG.
	_ = godotenv.Load()

	configPath := flag.String("config", getConfigPath(), "Path to client config file")
	server := flag.String("server", "", "Gateway URL (overrides config)")
	user := flag.String("user", "", "User id sent with queries (overrides config)")
	sessionID := flag.String("session", "", "Session id to open at startup")
	flag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.Gateway.URL = *server
	}
	if *user != "" {
		cfg.User.ID = *user
	}

	token, err := getToken(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	term := newUI(os.Stdout)
	if isTerminal(os.Stdout) {
		term.markdown = glamourMarkdown(80)
	}

	var input lineReader
	if isTerminal(os.Stdin) {
		input = newHistoryReader(getHistoryPath())
	} else {
		input = newScanReader(os.Stdin, term.prompt)
	}

	err = run(ctx, cfg, token, *sessionID, input, term)
	input.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func run(ctx context.Context, cfg *config.ClientConfig, token, sessionID string, input lineReader, term *ui) error {
	logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	bold := color.New(color.Bold)
	term.printf("%s connected to %s as %s\n", bold.Sprint("coven-chat"), cfg.Gateway.URL, cfg.User.ID)
	if token != "" {
		term.info("Auth: bearer token configured")
	} else {
		term.info("Auth: none (set COVEN_CHAT_TOKEN or gateway.token for authentication)")
	}
	term.info("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	term.printf("\n")

	c := client.New(client.Options{
		BaseURL:      cfg.Gateway.URL,
		Token:        token,
		ReconnectMin: cfg.Realtime.ReconnectMin,
		ReconnectMax: cfg.Realtime.ReconnectMax,
		Logger:       logger,
		OnStatus: func(connected bool, err error) {
			if connected {
				logger.Info("realtime connected")
				return
			}
			term.errorf("realtime disconnected: %v (reconnecting)", err)
		},
	})

	eng := engine.New(c, c, engine.Config{
		UserID:          cfg.User.ID,
		ResponseTimeout: cfg.Dispatch.ResponseTimeout,
		Logger:          logger,
	})
	defer eng.Close()

	a := &app{
		eng:     eng,
		indexer: index.New(c, logger),
		ui:      term,
	}

	go eng.Run(ctx, c.Subscribe(ctx))
	go renderUpdates(ctx, eng, term)

	if sessionID != "" {
		a.open(ctx, sessionID)
	}

	return readLoop(ctx, input, func(line string) error {
		return a.exec(ctx, line)
	})
}

// renderUpdates prints engine updates until ctx ends or the engine closes.
func renderUpdates(ctx context.Context, eng *engine.Engine, term *ui) {
	for {
		select {
		case <-ctx.Done():
			term.stopSpinner()
			return
		case upd, ok := <-eng.Updates():
			if !ok {
				term.stopSpinner()
				return
			}
			term.handle(upd, eng)
		}
	}
}

// readLoop hands each non-empty input line to handle. A line is only read
// after the previous one was handled, so the prompt never interleaves with
// command output.
func readLoop(ctx context.Context, input lineReader, handle func(string) error) error {
	type result struct {
		line string
		err  error
	}
	next := make(chan struct{})
	results := make(chan result)
	defer close(next)

	go func() {
		for range next {
			line, err := input.ReadLine("> ")
			select {
			case results <- result{line: line, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case next <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		var res result
		select {
		case <-ctx.Done():
			return nil
		case res = <-results:
		}

		if errors.Is(res.err, io.EOF) {
			return nil
		}
		if res.err != nil {
			return fmt.Errorf("reading input: %w", res.err)
		}

		line := strings.TrimSpace(res.line)
		if line == "" {
			continue
		}

		if err := handle(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}
}
