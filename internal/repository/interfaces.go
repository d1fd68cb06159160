package repository

import (
	"context"

	"github.com/abrezinsky/lotterydesk/internal/models"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

// ChatRepository defines chat journal operations
type ChatRepository interface {
	SaveChatMessage(ctx context.Context, msg models.ChatMessage) error
	RecentChatMessages(ctx context.Context, limit int) ([]models.ChatMessage, error)
	ClearChatMessages(ctx context.Context) error
}

// ResultRepository defines draw result journal operations
type ResultRepository interface {
	SaveDrawResult(ctx context.Context, result lotteryapi.DrawResult, source string) error
	ListDrawResults(ctx context.Context, limit int) ([]models.DrawHistoryEntry, error)
}

// SettingsRepository defines settings data operations
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	ClearTable(ctx context.Context, table string) error
}

// FullRepository combines all repository interfaces
type FullRepository interface {
	ChatRepository
	ResultRepository
	SettingsRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
