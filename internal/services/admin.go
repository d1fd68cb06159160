package services

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/abrezinsky/lotterydesk/internal/logger"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

// Statistics combines participant and prize statistics
type Statistics struct {
	Participants *lotteryapi.ParticipantStatistics `json:"participants"`
	Prizes       *lotteryapi.PrizeStatistics       `json:"prizes"`
}

// RecordFilter selects which draw records to list.
// At most one of PrizeID and ParticipantID should be set.
type RecordFilter struct {
	PrizeID       string
	ParticipantID string
	All           bool // include cancelled records
}

// AdminService validates administrative input before it reaches the lottery service
type AdminService struct {
	log    logger.Logger
	client lotteryapi.Client
}

// NewAdminService creates a new AdminService
func NewAdminService(log logger.Logger, client lotteryapi.Client) *AdminService {
	return &AdminService{log: log, client: client}
}

// ==================== Participants ====================

// ListParticipants lists participants, optionally filtered by status
func (s *AdminService) ListParticipants(ctx context.Context, status string) ([]lotteryapi.Participant, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		return s.client.ListParticipants(ctx)
	}
	return s.client.ListParticipantsByStatus(ctx, status)
}

func normalizeParticipant(p lotteryapi.Participant) (lotteryapi.Participant, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.EmployeeID = strings.TrimSpace(p.EmployeeID)
	p.Department = strings.TrimSpace(p.Department)
	if p.Name == "" {
		return p, ErrNameRequired
	}
	return p, nil
}

// AddParticipant creates a participant after validating its name
func (s *AdminService) AddParticipant(ctx context.Context, p lotteryapi.Participant) (*lotteryapi.Participant, error) {
	p, err := normalizeParticipant(p)
	if err != nil {
		return nil, err
	}
	created, err := s.client.AddParticipant(ctx, p)
	if err != nil {
		return nil, err
	}
	s.log.Info("Participant added", "participant_id", created.ID, "name", created.Name)
	return created, nil
}

// UpdateParticipant updates a participant after validating its name
func (s *AdminService) UpdateParticipant(ctx context.Context, id string, p lotteryapi.Participant) (*lotteryapi.Participant, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrIDRequired
	}
	p, err := normalizeParticipant(p)
	if err != nil {
		return nil, err
	}
	return s.client.UpdateParticipant(ctx, id, p)
}

// DeleteParticipants deletes one participant directly or several in a batch
func (s *AdminService) DeleteParticipants(ctx context.Context, ids []string) error {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}

	switch len(cleaned) {
	case 0:
		return ErrNoParticipantsGiven
	case 1:
		if err := s.client.DeleteParticipant(ctx, cleaned[0]); err != nil {
			return err
		}
	default:
		if err := s.client.DeleteParticipants(ctx, cleaned); err != nil {
			return err
		}
	}
	s.log.Info("Participants deleted", "count", len(cleaned))
	return nil
}

// ImportParticipants uploads a non-empty .xlsx or .xls spreadsheet
func (s *AdminService) ImportParticipants(ctx context.Context, filename string, r io.Reader) (*lotteryapi.ImportResult, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
	default:
		return nil, ErrInvalidImportType
	}

	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyImportFile
		}
		return nil, err
	}

	result, err := s.client.ImportParticipants(ctx, filename, br)
	if err != nil {
		return nil, err
	}
	s.log.Info("Participants imported", "file", filepath.Base(filename), "success", result.Success, "failed", result.Failed)
	return result, nil
}

// ==================== Prizes ====================

// ListPrizes lists prizes, optionally filtered by status
func (s *AdminService) ListPrizes(ctx context.Context, status string) ([]lotteryapi.Prize, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		return s.client.ListPrizes(ctx)
	}
	return s.client.ListPrizesByStatus(ctx, status)
}

func validatePrize(p lotteryapi.Prize) (lotteryapi.Prize, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	if p.Name == "" {
		return p, ErrPrizeNameRequired
	}
	if p.Level <= 0 {
		return p, ErrInvalidPrizeLevel
	}
	if p.Count <= 0 {
		return p, ErrInvalidPrizeCount
	}
	return p, nil
}

// CreatePrize creates a prize after validating name, level and count
func (s *AdminService) CreatePrize(ctx context.Context, p lotteryapi.Prize) (*lotteryapi.Prize, error) {
	p, err := validatePrize(p)
	if err != nil {
		return nil, err
	}
	created, err := s.client.CreatePrize(ctx, p)
	if err != nil {
		return nil, err
	}
	s.log.Info("Prize created", "prize_id", created.ID, "name", created.Name, "level", created.Level)
	return created, nil
}

// UpdatePrize updates a prize after validating name, level and count
func (s *AdminService) UpdatePrize(ctx context.Context, id string, p lotteryapi.Prize) (*lotteryapi.Prize, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrIDRequired
	}
	p, err := validatePrize(p)
	if err != nil {
		return nil, err
	}
	return s.client.UpdatePrize(ctx, id, p)
}

// DeletePrize deletes a prize
func (s *AdminService) DeletePrize(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrIDRequired
	}
	return s.client.DeletePrize(ctx, id)
}

// NextPendingPrize returns the next prize to draw, or nil when all are drawn
func (s *AdminService) NextPendingPrize(ctx context.Context) (*lotteryapi.Prize, error) {
	return s.client.NextPendingPrize(ctx)
}

// ==================== Reporting ====================

// Statistics fetches participant and prize statistics concurrently
func (s *AdminService) Statistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ps, err := s.client.ParticipantStatistics(gctx)
		stats.Participants = ps
		return err
	})
	g.Go(func() error {
		ps, err := s.client.PrizeStatistics(gctx)
		stats.Prizes = ps
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Records lists draw records matching filter
func (s *AdminService) Records(ctx context.Context, filter RecordFilter) ([]lotteryapi.LotteryRecord, error) {
	switch {
	case filter.PrizeID != "":
		return s.client.ListRecordsByPrize(ctx, filter.PrizeID)
	case filter.ParticipantID != "":
		return s.client.ListRecordsByParticipant(ctx, filter.ParticipantID)
	case filter.All:
		return s.client.ListRecords(ctx)
	default:
		return s.client.ListValidRecords(ctx)
	}
}
