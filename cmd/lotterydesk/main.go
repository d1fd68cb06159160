package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/abrezinsky/lotterydesk/internal/app"
	"github.com/abrezinsky/lotterydesk/internal/browser"
	"github.com/abrezinsky/lotterydesk/internal/cli"
	"github.com/abrezinsky/lotterydesk/internal/config"
	"github.com/abrezinsky/lotterydesk/internal/logger"
	"github.com/abrezinsky/lotterydesk/internal/services"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryws"
	"github.com/abrezinsky/lotterydesk/web"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

var (
	version = "dev"
)

// showBanner prints the LotteryDesk logo
func showBanner(w io.Writer) {
	logo := []string{
		"  _          _   _                 ___         _   ",
		" | |   ___  | |_| |_ ___ _ _ _  _ |   \\ ___ __| |__",
		" | |__/ _ \\ |  _|  _/ -_) '_| || || |) / -_|_-< / /",
		" |____\\___/  \\__|\\__\\___|_|  \\_, ||___/\\___/__/_\\_\\",
		"                              |__/                  ",
	}
	width := 0
	for _, line := range logo {
		if len(line) > width {
			width = len(line)
		}
	}
	width += 2
	border := strings.Repeat("═", width)

	fmt.Fprintf(w, "\n  %s╔%s╗%s\n", red, border, reset)
	for _, line := range logo {
		fmt.Fprintf(w, "  %s║%s%-*s%s║%s\n", red, yellow, width, line, red, reset)
	}
	fmt.Fprintf(w, "  %s╚%s╝%s\n\n", red, border, reset)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, rest, err := config.Load(args, nil, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	command := "serve"
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}
	if command != "serve" && !cli.Has(command) {
		fmt.Fprintf(stderr, "unknown command %q, run lotterydesk -help for a list\n", command)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if command == "serve" {
		if err := serve(ctx, stop, cfg, stdout); err != nil {
			fmt.Fprintf(stderr, "%sError: %v%s\n", red, err, reset)
			return 1
		}
		return 0
	}

	// One-shot commands only log problems unless asked for more.
	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.LogLevel == config.DefaultLogLevel {
		level = logger.ParseLevel("warn")
	}
	appLog := logger.NewWithWriter(stderr, level)
	client := newClient(cfg, appLog)

	runner := &cli.Runner{
		Client:    client,
		Admin:     services.NewAdminService(appLog, client),
		Operator:  cfg.Operator,
		SessionID: cfg.SessionID,
		Version:   version,
		Out:       stdout,
	}
	if m, err := newMessenger(cfg, appLog); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	} else if m != nil {
		runner.Messenger = m
	}

	if err := runner.Run(ctx, command, rest); err != nil {
		var usage *cli.UsageError
		if errors.As(err, &usage) {
			fmt.Fprintln(stderr, usage)
			return 2
		}
		fmt.Fprintf(stderr, "%sError: %s%s\n", red, lotteryapi.MessageOf(err), reset)
		return 1
	}
	return 0
}

func newClient(cfg *config.Config, log logger.Logger) *lotteryapi.HTTPClient {
	return lotteryapi.NewHTTPClientWithHTTPClient(cfg.ServiceURL, &http.Client{Timeout: cfg.RequestTimeout}, log)
}

// newMessenger returns nil when the voice command channel is disabled
func newMessenger(cfg *config.Config, log logger.Logger) (*lotteryws.Service, error) {
	if cfg.NoMessaging {
		return nil, nil
	}
	endpoint, err := lotteryws.EndpointURL(cfg.ServiceURL)
	if err != nil {
		return nil, err
	}
	return lotteryws.New(endpoint, log, lotteryws.Options{
		ReconnectDelay: cfg.ReconnectDelay,
		Heartbeat:      cfg.Heartbeat,
	}), nil
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *config.Config, stdout io.Writer) error {
	showBanner(stdout)

	out := &rawWriter{w: stdout}
	appLog := logger.NewWithWriter(out, logger.ParseLevel(cfg.LogLevel))
	client := newClient(cfg, appLog)

	messenger, err := newMessenger(cfg, appLog)
	if err != nil {
		return err
	}
	var m app.Messenger
	if messenger != nil {
		m = messenger
	}

	a, err := app.New(appLog, app.Options{
		DBPath:           cfg.DBPath,
		OperatorPassword: cfg.OperatorPassword,
		Operator:         cfg.Operator,
		SessionID:        cfg.SessionID,
		ChatLimit:        cfg.ChatLimit,
		Static:           web.GetStaticFS(),
	}, client, m)
	if err != nil {
		return fmt.Errorf("failed to initialize console: %w", err)
	}
	defer a.Close()

	appLog.Info("Lottery service", "url", cfg.ServiceURL)
	appLog.Info("Operator password", "password", a.OperatorPassword())
	a.Start()

	if cfg.NoKeyboard {
		fmt.Fprintf(out, "%sKeyboard shortcuts disabled (use -nokeyboard=false to enable)%s\n\n", yellow, reset)
	} else {
		kb := &keyboard{
			out:        out,
			log:        appLog,
			consoleURL: browser.ConsoleURL(cfg.Addr),
			open:       browser.Open,
			reload:     a.Reload,
			quit:       stop,
		}
		kb.printHelp()

		kbDone := make(chan struct{})
		go func() {
			defer close(kbDone)
			listenForKeyboard(ctx, kb, out)
		}()
		// the terminal must leave raw mode before the process exits
		defer func() {
			stop()
			<-kbDone
		}()
	}

	return a.Run(ctx, cfg.Addr)
}
