// Package app wires the console together: journal, lottery clients, drawing
// session, display hub and HTTP handlers.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/lotterydesk/internal/auth"
	"github.com/abrezinsky/lotterydesk/internal/handlers"
	"github.com/abrezinsky/lotterydesk/internal/logger"
	"github.com/abrezinsky/lotterydesk/internal/repository"
	"github.com/abrezinsky/lotterydesk/internal/services"
	"github.com/abrezinsky/lotterydesk/internal/store"
	"github.com/abrezinsky/lotterydesk/internal/websocket"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryws"
)

// shutdownTimeout bounds graceful HTTP shutdown
const shutdownTimeout = 5 * time.Second

// Messenger is the push channel the console connects to on start
type Messenger interface {
	services.Messenger
	Connect(ctx context.Context) error
	Disconnect()
}

// Options configures a console instance
type Options struct {
	DBPath           string
	OperatorPassword string // empty means use or generate the stored one
	Operator         string
	SessionID        string
	ChatLimit        int
	Static           fs.FS // display page assets; nil disables /display
}

// App holds all application dependencies
type App struct {
	log       logger.Logger
	repo      *repository.Repository
	client    lotteryapi.Client
	messenger Messenger
	store     *store.Store
	hub       *websocket.Hub
	voice     *services.VoiceService
	settings  *services.SettingsService
	handlers  *handlers.Handlers
	password  string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates and initializes a console. messenger may be nil, in which case
// voice commands report that the channel is not connected.
func New(log logger.Logger, opts Options, client lotteryapi.Client, messenger Messenger) (*App, error) {
	repo, err := repository.New(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	settingsService := services.NewSettingsService(log, repo)
	password, err := settingsService.OperatorPassword(ctx, opts.OperatorPassword)
	if err != nil {
		cancel()
		repo.Close()
		return nil, fmt.Errorf("operator password: %w", err)
	}

	if messenger == nil {
		messenger = offlineMessenger{}
	}

	hub := websocket.New(log, nil)
	storeOpts := []store.Option{
		store.WithBroadcaster(hub),
		store.WithChatRepository(repo),
		store.WithResultRepository(repo),
		store.WithOperator(opts.Operator),
	}
	if opts.ChatLimit > 0 {
		storeOpts = append(storeOpts, store.WithChatLimit(opts.ChatLimit))
	}
	st := store.New(client, log, storeOpts...)
	hub.SetStateProvider(st)

	if err := st.RestoreChat(ctx); err != nil {
		log.Warn("Chat history not restored", "error", err)
	}

	voiceService := services.NewVoiceService(log, st, messenger, opts.SessionID)
	adminService := services.NewAdminService(log, client)
	operatorAuth := auth.New(password)

	h := handlers.New(log, st, voiceService, adminService, settingsService, client, operatorAuth, hub)
	h.Static = opts.Static

	hub.Start(ctx)

	return &App{
		log:       log,
		repo:      repo,
		client:    client,
		messenger: messenger,
		store:     st,
		hub:       hub,
		voice:     voiceService,
		settings:  settingsService,
		handlers:  h,
		password:  password,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Store returns the drawing session
func (a *App) Store() *store.Store {
	return a.store
}

// OperatorPassword returns the password operators log in with
func (a *App) OperatorPassword() string {
	return a.password
}

// Start loads prizes and participants and connects the push channel in the
// background. A service that is down only produces warnings.
func (a *App) Start() {
	if err := a.Reload(a.ctx); err != nil {
		a.log.Warn("Initial load failed, use reload once the service is up", "error", lotteryapi.MessageOf(err))
	}

	if _, offline := a.messenger.(offlineMessenger); offline {
		a.log.Info("Voice commands disabled")
		return
	}
	go a.connectMessaging()
}

func (a *App) connectMessaging() {
	if err := a.messenger.Connect(a.ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			a.log.Error("Voice command channel unavailable", "error", err)
		}
		return
	}
	if err := a.voice.Attach(); err != nil {
		a.log.Error("Failed to subscribe to lottery topics", "error", err)
	}
}

// Reload refreshes prizes and participants from the service
func (a *App) Reload(ctx context.Context) error {
	return a.store.LoadAll(ctx)
}

// Close performs graceful shutdown of app resources. It is safe to call twice.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.cancel()
		a.messenger.Disconnect()
		if err := a.repo.Close(); err != nil {
			a.log.Warn("Failed to close journal", "error", err)
		}
	})
}

// Run serves the console on addr until ctx is cancelled
func (a *App) Run(ctx context.Context, addr string) error {
	baseURL := fmt.Sprintf("http://%s%s", preferredIP(systemInterfaces{}), portOf(addr))
	a.setDefaultBaseURL(ctx, baseURL)

	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Console listening", "addr", addr, "display_url", baseURL+"/display")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.log.Info("Console shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// setDefaultBaseURL stores baseURL for display QR codes unless an operator
// already configured a non-localhost one
func (a *App) setDefaultBaseURL(ctx context.Context, baseURL string) {
	existing, err := a.settings.GetBaseURL(ctx)
	if err != nil {
		a.log.Warn("Failed to read base_url", "error", err)
		return
	}
	if existing != "" && !isLocalURL(existing) {
		return
	}
	if err := a.settings.SetBaseURL(ctx, baseURL); err != nil {
		a.log.Warn("Failed to set default base_url", "error", err)
		return
	}
	a.log.Info("Default base URL set", "url", baseURL)
}

// offlineMessenger is used when voice commands are disabled
type offlineMessenger struct{}

func (offlineMessenger) Connected() bool { return false }
func (offlineMessenger) Connect(ctx context.Context) error { return lotteryws.ErrNotConnected }
func (offlineMessenger) Disconnect() {}

func (offlineMessenger) SendVoiceCommand(transcript, sessionID string) error {
	return lotteryws.ErrNotConnected
}

func (offlineMessenger) SubscribeCommandResult(cb func(lotteryapi.CommandResponse)) error {
	return lotteryws.ErrNotConnected
}

func (offlineMessenger) SubscribeLotteryResult(cb func(lotteryapi.DrawResult)) error {
	return lotteryws.ErrNotConnected
}

var _ Messenger = (*lotteryws.Service)(nil)
