package mock

import (
	"context"

	"github.com/abrezinsky/lotterydesk/internal/models"
	"github.com/abrezinsky/lotterydesk/internal/repository"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

// Repository wraps a real repository and allows injecting errors for testing.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.ListDrawResultsError = errors.New("database error")
//	h := handlers.New(log, st, voice, admin, mockRepo, ...)
type Repository struct {
	repository.FullRepository

	// ===== Chat Errors =====
	SaveChatMessageError    error
	RecentChatMessagesError error
	ClearChatMessagesError  error

	// ===== Result Errors =====
	SaveDrawResultError  error
	ListDrawResultsError error

	// ===== Settings Errors =====
	GetSettingError error
	SetSettingError error
	ClearTableError error
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// SaveChatMessage returns the injected error or delegates
func (m *Repository) SaveChatMessage(ctx context.Context, msg models.ChatMessage) error {
	if m.SaveChatMessageError != nil {
		return m.SaveChatMessageError
	}
	return m.FullRepository.SaveChatMessage(ctx, msg)
}

// RecentChatMessages returns the injected error or delegates
func (m *Repository) RecentChatMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	if m.RecentChatMessagesError != nil {
		return nil, m.RecentChatMessagesError
	}
	return m.FullRepository.RecentChatMessages(ctx, limit)
}

// ClearChatMessages returns the injected error or delegates
func (m *Repository) ClearChatMessages(ctx context.Context) error {
	if m.ClearChatMessagesError != nil {
		return m.ClearChatMessagesError
	}
	return m.FullRepository.ClearChatMessages(ctx)
}

// SaveDrawResult returns the injected error or delegates
func (m *Repository) SaveDrawResult(ctx context.Context, result lotteryapi.DrawResult, source string) error {
	if m.SaveDrawResultError != nil {
		return m.SaveDrawResultError
	}
	return m.FullRepository.SaveDrawResult(ctx, result, source)
}

// ListDrawResults returns the injected error or delegates
func (m *Repository) ListDrawResults(ctx context.Context, limit int) ([]models.DrawHistoryEntry, error) {
	if m.ListDrawResultsError != nil {
		return nil, m.ListDrawResultsError
	}
	return m.FullRepository.ListDrawResults(ctx, limit)
}

// GetSetting returns the injected error or delegates
func (m *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	if m.GetSettingError != nil {
		return "", m.GetSettingError
	}
	return m.FullRepository.GetSetting(ctx, key)
}

// SetSetting returns the injected error or delegates
func (m *Repository) SetSetting(ctx context.Context, key, value string) error {
	if m.SetSettingError != nil {
		return m.SetSettingError
	}
	return m.FullRepository.SetSetting(ctx, key, value)
}

// ClearTable returns the injected error or delegates
func (m *Repository) ClearTable(ctx context.Context, table string) error {
	if m.ClearTableError != nil {
		return m.ClearTableError
	}
	return m.FullRepository.ClearTable(ctx, table)
}

// Ensure Repository implements FullRepository
var _ repository.FullRepository = (*Repository)(nil)
