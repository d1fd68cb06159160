package services_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/abrezinsky/lotterydesk/internal/logger"
	"github.com/abrezinsky/lotterydesk/internal/models"
	"github.com/abrezinsky/lotterydesk/internal/repository"
	"github.com/abrezinsky/lotterydesk/internal/repository/mock"
	"github.com/abrezinsky/lotterydesk/internal/services"
	"github.com/abrezinsky/lotterydesk/internal/testutil"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G'}

func TestSettingsService_GetSetSetting(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.Discard(), repo)
	ctx := context.Background()

	if err := svc.SetSetting(ctx, "operator_name", "主持人"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	value, err := svc.GetSetting(ctx, "operator_name")
	if err != nil || value != "主持人" {
		t.Errorf("unexpected value %q, %v", value, err)
	}
}

func TestSettingsService_OperatorPassword(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.Discard(), repo)
	ctx := context.Background()

	configured, err := svc.OperatorPassword(ctx, "from-config")
	if err != nil || configured != "from-config" {
		t.Fatalf("expected configured password, got %q, %v", configured, err)
	}

	generated, err := svc.OperatorPassword(ctx, "")
	if err != nil {
		t.Fatalf("OperatorPassword failed: %v", err)
	}
	if generated == "" {
		t.Fatal("expected a generated password")
	}

	again, err := svc.OperatorPassword(ctx, "")
	if err != nil {
		t.Fatalf("OperatorPassword failed: %v", err)
	}
	if again != generated {
		t.Errorf("expected stored password %q to be reused, got %q", generated, again)
	}
}

func TestSettingsService_OperatorPasswordErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("read error", func(t *testing.T) {
		mockRepo := mock.NewRepository(testutil.NewTestRepository(t))
		dbErr := errors.New("database locked")
		mockRepo.GetSettingError = dbErr
		svc := services.NewSettingsService(logger.Discard(), mockRepo)

		if _, err := svc.OperatorPassword(ctx, ""); !errors.Is(err, dbErr) {
			t.Errorf("expected database error, got %v", err)
		}
	})

	t.Run("write error", func(t *testing.T) {
		mockRepo := mock.NewRepository(testutil.NewTestRepository(t))
		dbErr := errors.New("readonly")
		mockRepo.SetSettingError = dbErr
		svc := services.NewSettingsService(logger.Discard(), mockRepo)

		if _, err := svc.OperatorPassword(ctx, ""); !errors.Is(err, dbErr) {
			t.Errorf("expected write error, got %v", err)
		}
	})
}

func TestSettingsService_BaseURL(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.Discard(), repo)
	ctx := context.Background()

	url, err := svc.GetBaseURL(ctx)
	if err != nil || url != "" {
		t.Errorf("expected empty default, got %q, %v", url, err)
	}

	if err := svc.SetBaseURL(ctx, " http://192.168.1.20:8080/ "); err != nil {
		t.Fatalf("SetBaseURL failed: %v", err)
	}
	url, _ = svc.GetBaseURL(ctx)
	if url != "http://192.168.1.20:8080" {
		t.Errorf("expected normalized URL, got %q", url)
	}
}

func TestSettingsService_GetBaseURLError(t *testing.T) {
	mockRepo := mock.NewRepository(testutil.NewTestRepository(t))
	mockRepo.GetSettingError = errors.New("database locked")
	svc := services.NewSettingsService(logger.Discard(), mockRepo)

	if _, err := svc.GetBaseURL(context.Background()); err == nil {
		t.Error("expected error")
	}
	if _, err := svc.DisplayQR(context.Background(), "http://localhost:8080"); err == nil {
		t.Error("expected DisplayQR to propagate the error")
	}
}

func TestSettingsService_DisplayQR(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.Discard(), repo)
	ctx := context.Background()

	png, err := svc.DisplayQR(ctx, "http://localhost:8080/")
	if err != nil {
		t.Fatalf("DisplayQR failed: %v", err)
	}
	if !bytes.HasPrefix(png, pngSignature) {
		t.Error("expected PNG output")
	}

	svc.SetBaseURL(ctx, "http://lottery.example.com")
	stored, err := svc.DisplayQR(ctx, "http://localhost:8080")
	if err != nil {
		t.Fatalf("DisplayQR failed: %v", err)
	}
	if bytes.Equal(png, stored) {
		t.Error("expected the stored base URL to change the QR code")
	}
}

func TestSettingsService_History(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.Discard(), repo)
	ctx := context.Background()

	for _, id := range []string{"prize-3", "prize-2", "prize-1"} {
		if err := repo.SaveDrawResult(ctx, lotteryapi.DrawResult{PrizeID: id}, "draw"); err != nil {
			t.Fatalf("SaveDrawResult failed: %v", err)
		}
	}

	entries, err := svc.History(ctx, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 3 || entries[0].PrizeID != "prize-1" {
		t.Errorf("expected newest first, got %+v", entries)
	}

	entries, _ = svc.History(ctx, 2)
	if len(entries) != 2 {
		t.Errorf("expected limit 2, got %d", len(entries))
	}
}

func TestSettingsService_ResetJournal(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.Discard(), repo)
	ctx := context.Background()

	repo.SaveDrawResult(ctx, lotteryapi.DrawResult{PrizeID: "prize-1"}, "draw")
	repo.SaveChatMessage(ctx, models.ChatMessage{ID: "m", Type: models.ChatTypeUser, Content: "hi"})

	result, err := svc.ResetJournal(ctx, []string{"draw_results", "chat_messages"})
	if err != nil {
		t.Fatalf("ResetJournal failed: %v", err)
	}
	if len(result.Tables) != 2 {
		t.Errorf("expected 2 tables, got %v", result.Tables)
	}

	entries, _ := repo.ListDrawResults(ctx, 10)
	msgs, _ := repo.RecentChatMessages(ctx, 10)
	if len(entries) != 0 || len(msgs) != 0 {
		t.Errorf("expected empty journal, got %d results and %d messages", len(entries), len(msgs))
	}
}

func TestSettingsService_ResetJournalValidation(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.Discard(), repo)
	ctx := context.Background()

	if _, err := svc.ResetJournal(ctx, nil); err != services.ErrNoTablesSpecified {
		t.Errorf("expected ErrNoTablesSpecified, got %v", err)
	}

	_, err := svc.ResetJournal(ctx, []string{"draw_results", "participants"})
	var tableErr *services.InvalidTableError
	if !errors.As(err, &tableErr) || tableErr.Table != "participants" {
		t.Errorf("expected InvalidTableError for participants, got %v", err)
	}
}

func TestSettingsService_ResetJournalClearError(t *testing.T) {
	mockRepo := mock.NewRepository(testutil.NewTestRepository(t))
	mockRepo.ClearTableError = repository.ErrInvalidTable
	svc := services.NewSettingsService(logger.Discard(), mockRepo)

	if _, err := svc.ResetJournal(context.Background(), []string{"settings"}); err != repository.ErrInvalidTable {
		t.Errorf("expected clear error, got %v", err)
	}
}
