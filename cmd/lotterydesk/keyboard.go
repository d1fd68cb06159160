package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/term"

	"github.com/abrezinsky/lotterydesk/internal/logger"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

// rawWriter translates "\n" to "\r\n" while the terminal is in raw mode
type rawWriter struct {
	mu  sync.Mutex
	w   io.Writer
	raw atomic.Bool
}

func (r *rawWriter) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.raw.Load() {
		return r.w.Write(p)
	}
	if _, err := r.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// keyboard maps single key presses to console actions
type keyboard struct {
	out        io.Writer
	log        *logger.SlogLogger
	consoleURL string
	open       func(url string) error
	reload     func(ctx context.Context) error
	quit       func()
}

// printHelp displays all available keyboard shortcuts
func (k *keyboard) printHelp() {
	fmt.Fprintf(k.out, "%s%s  Keyboard shortcuts:%s\n", bold, green, reset)
	fmt.Fprintf(k.out, "    %so%s      - Open the display page in a browser\n", cyan, reset)
	fmt.Fprintf(k.out, "    %sr%s      - Reload prizes and participants\n", cyan, reset)
	fmt.Fprintf(k.out, "    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Fprintf(k.out, "    %sl%s      - Cycle log level (debug → info → warn → error)\n", cyan, reset)
	fmt.Fprintf(k.out, "    %sq%s      - Quit\n", cyan, reset)
	fmt.Fprintf(k.out, "    %s?%s      - Show this help\n\n", cyan, reset)
}

// cycleLogLevel cycles through debug -> info -> warn -> error
func (k *keyboard) cycleLogLevel() {
	next := logger.NextLevel(k.log.GetLevel())
	k.log.SetLevel(next)
	fmt.Fprintf(k.out, "%sLog level: %s%s%s\n", green, yellow, next, reset)
}

// handle performs the action bound to key. It returns false once the
// console should shut down.
func (k *keyboard) handle(ctx context.Context, key byte) bool {
	switch key {
	case 'o', 'O':
		fmt.Fprintf(k.out, "%sOpening %s in browser...%s\n", cyan, k.consoleURL, reset)
		if err := k.open(k.consoleURL); err != nil {
			fmt.Fprintf(k.out, "%sError opening browser: %v%s\n", red, err, reset)
		}
	case 'r', 'R':
		if err := k.reload(ctx); err != nil {
			fmt.Fprintf(k.out, "%sReload failed: %s%s\n", red, lotteryapi.MessageOf(err), reset)
		} else {
			fmt.Fprintf(k.out, "%sPrizes and participants reloaded%s\n", green, reset)
		}
	case 'h', 'H':
		if k.log.IsHTTPLoggingEnabled() {
			k.log.DisableHTTPLogging()
			fmt.Fprintf(k.out, "%sHTTP logging disabled%s\n", yellow, reset)
		} else {
			k.log.EnableHTTPLogging()
			fmt.Fprintf(k.out, "%sHTTP logging enabled%s\n", green, reset)
		}
	case 'l', 'L':
		k.cycleLogLevel()
	case '?':
		k.printHelp()
	case 'q', 'Q', 0x03: // Ctrl+C arrives as a byte in raw mode
		fmt.Fprintf(k.out, "%sShutting down...%s\n", yellow, reset)
		k.quit()
		return false
	}
	return true
}

// readKeys feeds bytes from in to k until ctx is done, in fails or k quits
func readKeys(ctx context.Context, k *keyboard, in io.Reader) {
	keys := make(chan byte)
	go func() {
		defer close(keys)
		buf := make([]byte, 1)
		for {
			n, err := in.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}
			select {
			case keys <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case key, ok := <-keys:
			if !ok || !k.handle(ctx, key) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// listenForKeyboard puts stdin in raw mode and dispatches key presses.
// Without a terminal it returns immediately.
func listenForKeyboard(ctx context.Context, k *keyboard, out *rawWriter) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return
	}
	out.raw.Store(true)
	defer func() {
		out.raw.Store(false)
		term.Restore(fd, oldState)
	}()

	readKeys(ctx, k, os.Stdin)
}
