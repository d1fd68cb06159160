// Package browser opens console pages in the operator's default browser.
package browser

import (
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strings"
)

// Starter launches a process without waiting for it
type Starter interface {
	Start(name string, args ...string) error
}

// ExecStarter starts real processes
type ExecStarter struct{}

// Start runs name with args in the background
func (ExecStarter) Start(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

var defaultStarter Starter = ExecStarter{}

// Open opens url in the default browser
func Open(url string) error {
	return OpenWith(defaultStarter, runtime.GOOS, url)
}

// OpenWith opens url using starter with the launcher for goos
func OpenWith(starter Starter, goos, url string) error {
	name, args, err := launcher(goos)
	if err != nil {
		return err
	}
	return starter.Start(name, append(args, url)...)
}

func launcher(goos string) (string, []string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return "xdg-open", nil, nil
	case "darwin":
		return "open", nil, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// ConsoleURL turns a listen address such as ":3000" or "0.0.0.0:3000" into a
// URL a local browser can open.
func ConsoleURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + strings.TrimPrefix(addr, "http://")
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
