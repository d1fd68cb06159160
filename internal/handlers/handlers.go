package handlers

import (
	"context"
	"io/fs"
	"net/http"

	"github.com/abrezinsky/lotterydesk/internal/auth"
	"github.com/abrezinsky/lotterydesk/internal/logger"
	"github.com/abrezinsky/lotterydesk/internal/models"
	"github.com/abrezinsky/lotterydesk/internal/services"
	"github.com/abrezinsky/lotterydesk/internal/websocket"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

// ConsoleStore is the drawing session the console drives
type ConsoleStore interface {
	Snapshot() models.Snapshot
	LoadAll(ctx context.Context) error
	StartDraw(prize lotteryapi.Prize)
	StopDraw(ctx context.Context) (*lotteryapi.DrawResult, error)
	Reset(ctx context.Context) error
	CancelWin(ctx context.Context, participantID string) error
	FindPrize(id string) (lotteryapi.Prize, bool)
	CurrentPrize() *lotteryapi.Prize
	ChatMessages() []models.ChatMessage
	ClearChatMessages(ctx context.Context)
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Store    ConsoleStore
	Voice    services.VoiceServicer
	Admin    services.AdminServicer
	Settings services.SettingsServicer
	Lottery  lotteryapi.Client
	Auth     *auth.Auth
	Hub      *websocket.Hub
	log      logger.Logger

	// Static holds display.html and its assets; nil disables /display
	Static fs.FS
}

// NewStaticServer creates a static file server from an fs.FS
func NewStaticServer(staticFS fs.FS) http.Handler {
	return http.FileServer(http.FS(staticFS))
}

// New creates a new Handlers instance with all dependencies
func New(
	log logger.Logger,
	store ConsoleStore,
	voice services.VoiceServicer,
	admin services.AdminServicer,
	settings services.SettingsServicer,
	lottery lotteryapi.Client,
	operatorAuth *auth.Auth,
	hub *websocket.Hub,
) *Handlers {
	return &Handlers{
		Store:    store,
		Voice:    voice,
		Admin:    admin,
		Settings: settings,
		Lottery:  lottery,
		Auth:     operatorAuth,
		Hub:      hub,
		log:      log,
	}
}
