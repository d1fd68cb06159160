package browser

import (
	"errors"
	"reflect"
	"testing"
)

type recordingStarter struct {
	name string
	args []string
	err  error
}

func (r *recordingStarter) Start(name string, args ...string) error {
	r.name = name
	r.args = args
	return r.err
}

func TestOpenWith(t *testing.T) {
	const url = "http://localhost:3000/display"

	tests := []struct {
		goos     string
		wantName string
		wantArgs []string
	}{
		{"linux", "xdg-open", []string{url}},
		{"freebsd", "xdg-open", []string{url}},
		{"darwin", "open", []string{url}},
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", url}},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			starter := &recordingStarter{}
			if err := OpenWith(starter, tt.goos, url); err != nil {
				t.Fatalf("OpenWith failed: %v", err)
			}
			if starter.name != tt.wantName {
				t.Errorf("expected %q, got %q", tt.wantName, starter.name)
			}
			if !reflect.DeepEqual(starter.args, tt.wantArgs) {
				t.Errorf("expected args %v, got %v", tt.wantArgs, starter.args)
			}
		})
	}
}

func TestOpenWith_UnsupportedPlatform(t *testing.T) {
	starter := &recordingStarter{}
	if err := OpenWith(starter, "plan9", "http://localhost"); err == nil {
		t.Error("expected error for unsupported platform")
	}
	if starter.name != "" {
		t.Error("expected nothing to be started")
	}
}

func TestOpenWith_StartError(t *testing.T) {
	startErr := errors.New("not found")
	starter := &recordingStarter{err: startErr}
	if err := OpenWith(starter, "linux", "http://localhost"); !errors.Is(err, startErr) {
		t.Errorf("expected start error, got %v", err)
	}
}

func TestOpen_UsesDefaultStarter(t *testing.T) {
	orig := defaultStarter
	defer func() { defaultStarter = orig }()

	starter := &recordingStarter{}
	defaultStarter = starter

	Open("http://localhost:3000")
	if starter.name == "" && len(starter.args) == 0 {
		t.Skip("platform has no launcher")
	}
	if got := starter.args[len(starter.args)-1]; got != "http://localhost:3000" {
		t.Errorf("expected URL as last argument, got %q", got)
	}
}

func TestConsoleURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":3000", "http://localhost:3000"},
		{"0.0.0.0:8080", "http://localhost:8080"},
		{"[::]:3000", "http://localhost:3000"},
		{"192.168.1.5:3000", "http://192.168.1.5:3000"},
		{"lottery.local", "http://lottery.local"},
	}
	for _, tt := range tests {
		if got := ConsoleURL(tt.addr); got != tt.want {
			t.Errorf("ConsoleURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
