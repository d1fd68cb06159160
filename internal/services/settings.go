package services

import (
	"context"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/abrezinsky/lotterydesk/internal/auth"
	"github.com/abrezinsky/lotterydesk/internal/logger"
	"github.com/abrezinsky/lotterydesk/internal/models"
	"github.com/abrezinsky/lotterydesk/internal/repository"
)

// Setting keys
const (
	SettingOperatorPassword = "operator_password"
	SettingBaseURL          = "base_url"
)

// DefaultHistoryLimit caps History when no limit is given
const DefaultHistoryLimit = 50

// SettingsService handles console settings and the local draw journal
type SettingsService struct {
	log  logger.Logger
	repo repository.FullRepository
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(log logger.Logger, repo repository.FullRepository) *SettingsService {
	return &SettingsService{log: log, repo: repo}
}

// GetSetting retrieves an arbitrary setting
func (s *SettingsService) GetSetting(ctx context.Context, key string) (string, error) {
	return s.repo.GetSetting(ctx, key)
}

// SetSetting saves an arbitrary setting
func (s *SettingsService) SetSetting(ctx context.Context, key, value string) error {
	return s.repo.SetSetting(ctx, key, value)
}

// OperatorPassword resolves the operator password.
// A configured password wins; otherwise the stored one is reused, and if none
// is stored a new one is generated and saved so it survives restarts.
func (s *SettingsService) OperatorPassword(ctx context.Context, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	stored, err := s.repo.GetSetting(ctx, SettingOperatorPassword)
	if err == nil && stored != "" {
		return stored, nil
	}
	if err != nil && err != repository.ErrNotFound {
		return "", err
	}

	password := auth.GeneratePassword()
	if err := s.repo.SetSetting(ctx, SettingOperatorPassword, password); err != nil {
		return "", err
	}
	s.log.Info("Generated operator password")
	return password, nil
}

// GetBaseURL returns the public URL of the console
func (s *SettingsService) GetBaseURL(ctx context.Context) (string, error) {
	value, err := s.repo.GetSetting(ctx, SettingBaseURL)
	if err != nil {
		if err == repository.ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// SetBaseURL saves the public URL of the console
func (s *SettingsService) SetBaseURL(ctx context.Context, url string) error {
	return s.repo.SetSetting(ctx, SettingBaseURL, strings.TrimRight(strings.TrimSpace(url), "/"))
}

// DisplayQR renders a PNG QR code pointing at the big-screen display page.
// The stored base URL is preferred over fallbackURL.
func (s *SettingsService) DisplayQR(ctx context.Context, fallbackURL string) ([]byte, error) {
	base, err := s.GetBaseURL(ctx)
	if err != nil {
		return nil, err
	}
	if base == "" {
		base = strings.TrimRight(fallbackURL, "/")
	}
	return qrcode.Encode(base+"/display", qrcode.Medium, 256)
}

// History lists journaled draw results, newest first
func (s *SettingsService) History(ctx context.Context, limit int) ([]models.DrawHistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.repo.ListDrawResults(ctx, limit)
}

// ResetTablesResult contains the result of a journal reset
type ResetTablesResult struct {
	Tables  []string `json:"tables"`
	Message string   `json:"message"`
}

// ValidTables defines which journal tables can be reset
var ValidTables = map[string]bool{
	"chat_messages": true, "draw_results": true, "settings": true,
}

// ResetJournal validates and clears the named journal tables
func (s *SettingsService) ResetJournal(ctx context.Context, tables []string) (*ResetTablesResult, error) {
	if len(tables) == 0 {
		return nil, ErrNoTablesSpecified
	}

	for _, table := range tables {
		if !ValidTables[table] {
			return nil, &InvalidTableError{Table: table}
		}
	}

	for _, table := range tables {
		if err := s.repo.ClearTable(ctx, table); err != nil {
			return nil, err
		}
	}

	s.log.Info("Journal tables cleared", "tables", strings.Join(tables, ","))
	return &ResetTablesResult{
		Tables:  tables,
		Message: "Successfully deleted data from tables",
	}, nil
}
