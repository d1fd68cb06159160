package services

import (
	"context"
	"io"

	"github.com/abrezinsky/lotterydesk/internal/models"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

// VoiceServicer defines the voice-command chat operations
type VoiceServicer interface {
	Say(ctx context.Context, text string) error
	Attach() error
	Connected() bool
	HandleCommandResult(ctx context.Context, resp lotteryapi.CommandResponse)
	HandleLotteryResult(ctx context.Context, result lotteryapi.DrawResult)
}

// AdminServicer defines validated participant and prize administration
type AdminServicer interface {
	ListParticipants(ctx context.Context, status string) ([]lotteryapi.Participant, error)
	AddParticipant(ctx context.Context, p lotteryapi.Participant) (*lotteryapi.Participant, error)
	UpdateParticipant(ctx context.Context, id string, p lotteryapi.Participant) (*lotteryapi.Participant, error)
	DeleteParticipants(ctx context.Context, ids []string) error
	ImportParticipants(ctx context.Context, filename string, r io.Reader) (*lotteryapi.ImportResult, error)
	ListPrizes(ctx context.Context, status string) ([]lotteryapi.Prize, error)
	CreatePrize(ctx context.Context, p lotteryapi.Prize) (*lotteryapi.Prize, error)
	UpdatePrize(ctx context.Context, id string, p lotteryapi.Prize) (*lotteryapi.Prize, error)
	DeletePrize(ctx context.Context, id string) error
	NextPendingPrize(ctx context.Context) (*lotteryapi.Prize, error)
	Statistics(ctx context.Context) (*Statistics, error)
	Records(ctx context.Context, filter RecordFilter) ([]lotteryapi.LotteryRecord, error)
}

// SettingsServicer defines console settings and display helpers
type SettingsServicer interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	OperatorPassword(ctx context.Context, configured string) (string, error)
	GetBaseURL(ctx context.Context) (string, error)
	SetBaseURL(ctx context.Context, url string) error
	DisplayQR(ctx context.Context, fallbackURL string) ([]byte, error)
	History(ctx context.Context, limit int) ([]models.DrawHistoryEntry, error)
	ResetJournal(ctx context.Context, tables []string) (*ResetTablesResult, error)
}

// Ensure concrete types implement interfaces
var (
	_ VoiceServicer    = (*VoiceService)(nil)
	_ AdminServicer    = (*AdminService)(nil)
	_ SettingsServicer = (*SettingsService)(nil)
)
