package lotteryapi

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MockClient is an in-memory lottery service for tests and offline use.
// Draws pick available participants in list order.
type MockClient struct {
	mu sync.Mutex

	participants []Participant
	prizes       []Prize
	records      []LotteryRecord
	baseURL      string

	drawResult   *DrawResult
	drawErr      error
	listErr      error
	prizesErr    error
	resetErr     error
	cancelErr    error
	importResult *ImportResult
	importErr    error
	healthErr    error

	nextID     int
	drawCalls  int
	resetCalls int
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithParticipants sets the participants to start with
func WithParticipants(participants []Participant) MockOption {
	return func(m *MockClient) {
		m.participants = append([]Participant(nil), participants...)
	}
}

// WithPrizes sets the prizes to start with
func WithPrizes(prizes []Prize) MockOption {
	return func(m *MockClient) {
		m.prizes = append([]Prize(nil), prizes...)
	}
}

// WithDrawResult makes Draw return a fixed result instead of drawing
func WithDrawResult(result *DrawResult) MockOption {
	return func(m *MockClient) {
		m.drawResult = result
	}
}

// WithDrawError sets an error to return from Draw
func WithDrawError(err error) MockOption {
	return func(m *MockClient) {
		m.drawErr = err
	}
}

// WithListError sets an error to return from the participant queries
func WithListError(err error) MockOption {
	return func(m *MockClient) {
		m.listErr = err
	}
}

// WithPrizesError sets an error to return from the prize queries
func WithPrizesError(err error) MockOption {
	return func(m *MockClient) {
		m.prizesErr = err
	}
}

// WithResetError sets an error to return from Reset
func WithResetError(err error) MockOption {
	return func(m *MockClient) {
		m.resetErr = err
	}
}

// WithCancelError sets an error to return from CancelWin
func WithCancelError(err error) MockOption {
	return func(m *MockClient) {
		m.cancelErr = err
	}
}

// WithImportResult sets the result returned by ImportParticipants
func WithImportResult(result *ImportResult) MockOption {
	return func(m *MockClient) {
		m.importResult = result
	}
}

// WithImportError sets an error to return from ImportParticipants
func WithImportError(err error) MockOption {
	return func(m *MockClient) {
		m.importErr = err
	}
}

// WithHealthError sets an error to return from Health
func WithHealthError(err error) MockOption {
	return func(m *MockClient) {
		m.healthErr = err
	}
}

// WithBaseURL sets the base URL
func WithBaseURL(url string) MockOption {
	return func(m *MockClient) {
		m.baseURL = url
	}
}

// NewMockClient creates a mock seeded with DefaultMockParticipants and DefaultMockPrizes
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		baseURL:      "http://mock-lottery.local",
		participants: DefaultMockParticipants(),
		prizes:       DefaultMockPrizes(),
		nextID:       100,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BaseURL returns the configured base URL
func (m *MockClient) BaseURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseURL
}

// SetBaseURL updates the base URL
func (m *MockClient) SetBaseURL(url string) {
	m.mu.Lock()
	m.baseURL = url
	m.mu.Unlock()
}

// DrawCalls returns how many times Draw was called
func (m *MockClient) DrawCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drawCalls
}

// ResetCalls returns how many times Reset was called
func (m *MockClient) ResetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetCalls
}

func (m *MockClient) newID(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func notFound(kind, id string) error {
	return &APIError{Status: 200, Code: 404, Message: fmt.Sprintf("%s not found: %s", kind, id)}
}

func now() *FlexTime {
	return &FlexTime{Time: time.Now()}
}

func (m *MockClient) findParticipant(id string) int {
	for i := range m.participants {
		if m.participants[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *MockClient) findPrize(id string) int {
	for i := range m.prizes {
		if m.prizes[i].ID == id {
			return i
		}
	}
	return -1
}

// ==================== Participants ====================

// ListParticipants returns a copy of all participants
func (m *MockClient) ListParticipants(ctx context.Context) ([]Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]Participant(nil), m.participants...), nil
}

// ListParticipantsByStatus returns participants with the given status
func (m *MockClient) ListParticipantsByStatus(ctx context.Context, status string) ([]Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Participant
	for _, p := range m.participants {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetParticipant returns a participant by ID
func (m *MockClient) GetParticipant(ctx context.Context, id string) (*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findParticipant(id)
	if i < 0 {
		return nil, notFound("participant", id)
	}
	p := m.participants[i]
	return &p, nil
}

// AddParticipant stores a new AVAILABLE participant
func (m *MockClient) AddParticipant(ctx context.Context, p Participant) (*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.newID("participant")
	p.Status = StatusAvailable
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	m.participants = append(m.participants, p)
	return &p, nil
}

// UpdateParticipant replaces name, employee ID and department
func (m *MockClient) UpdateParticipant(ctx context.Context, id string, p Participant) (*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findParticipant(id)
	if i < 0 {
		return nil, notFound("participant", id)
	}
	cur := &m.participants[i]
	cur.Name = p.Name
	cur.EmployeeID = p.EmployeeID
	cur.Department = p.Department
	cur.UpdatedAt = now()
	updated := *cur
	return &updated, nil
}

// DeleteParticipant removes a participant
func (m *MockClient) DeleteParticipant(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findParticipant(id)
	if i < 0 {
		return notFound("participant", id)
	}
	m.participants = append(m.participants[:i], m.participants[i+1:]...)
	return nil
}

// DeleteParticipants removes every listed participant, ignoring unknown IDs
func (m *MockClient) DeleteParticipants(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.participants[:0]
	for _, p := range m.participants {
		if !drop[p.ID] {
			kept = append(kept, p)
		}
	}
	m.participants = kept
	return nil
}

// ImportParticipants drains r and returns the configured result
func (m *MockClient) ImportParticipants(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.importErr != nil {
		return nil, m.importErr
	}
	if m.importResult != nil {
		res := *m.importResult
		return &res, nil
	}
	return &ImportResult{Errors: []string{}}, nil
}

// ParticipantStatistics counts participants by status
func (m *MockClient) ParticipantStatistics(ctx context.Context) (*ParticipantStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.participantStats(), nil
}

func (m *MockClient) participantStats() *ParticipantStatistics {
	stats := &ParticipantStatistics{Total: int64(len(m.participants))}
	for _, p := range m.participants {
		switch p.Status {
		case StatusAvailable:
			stats.Available++
		case StatusWon:
			stats.Won++
		}
	}
	if stats.Total > 0 {
		stats.WinRate = float64(stats.Won) / float64(stats.Total) * 100
	}
	return stats
}

// ==================== Prizes ====================

// ListPrizes returns prizes ordered by level
func (m *MockClient) ListPrizes(ctx context.Context) ([]Prize, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prizesErr != nil {
		return nil, m.prizesErr
	}
	out := append([]Prize(nil), m.prizes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

// ListPrizesByStatus returns prizes with the given status
func (m *MockClient) ListPrizesByStatus(ctx context.Context, status string) ([]Prize, error) {
	all, err := m.ListPrizes(ctx)
	if err != nil {
		return nil, err
	}
	var out []Prize
	for _, p := range all {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetPrize returns a prize by ID
func (m *MockClient) GetPrize(ctx context.Context, id string) (*Prize, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findPrize(id)
	if i < 0 {
		return nil, notFound("prize", id)
	}
	p := m.prizes[i]
	return &p, nil
}

// CreatePrize stores a new PENDING prize
func (m *MockClient) CreatePrize(ctx context.Context, p Prize) (*Prize, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.newID("prize")
	p.Status = PrizePending
	p.DrawnCount = 0
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	m.prizes = append(m.prizes, p)
	return &p, nil
}

// UpdatePrize replaces name, level, count and description
func (m *MockClient) UpdatePrize(ctx context.Context, id string, p Prize) (*Prize, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findPrize(id)
	if i < 0 {
		return nil, notFound("prize", id)
	}
	cur := &m.prizes[i]
	cur.Name = p.Name
	cur.Level = p.Level
	cur.Count = p.Count
	cur.Description = p.Description
	cur.UpdatedAt = now()
	updated := *cur
	return &updated, nil
}

// DeletePrize removes a prize
func (m *MockClient) DeletePrize(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findPrize(id)
	if i < 0 {
		return notFound("prize", id)
	}
	m.prizes = append(m.prizes[:i], m.prizes[i+1:]...)
	return nil
}

// NextPendingPrize returns the pending prize with the highest level number,
// so the least important prize is drawn first. Returns nil when none remain.
func (m *MockClient) NextPendingPrize(ctx context.Context) (*Prize, error) {
	pending, err := m.ListPrizesByStatus(ctx, PrizePending)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	next := pending[len(pending)-1]
	return &next, nil
}

// PrizeStatistics summarizes prize progress
func (m *MockClient) PrizeStatistics(ctx context.Context) (*PrizeStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prizeStats(), nil
}

func (m *MockClient) prizeStats() *PrizeStatistics {
	stats := &PrizeStatistics{TotalPrizes: int64(len(m.prizes))}
	for _, p := range m.prizes {
		switch p.Status {
		case PrizePending:
			stats.PendingPrizes++
		case PrizeCompleted:
			stats.CompletedPrizes++
		}
		stats.TotalWinnerSlots += p.Count
		stats.TotalDrawn += p.DrawnCount
	}
	return stats
}

// ==================== Lottery ====================

// Draw marks up to the prize's remaining slots of available participants as winners
func (m *MockClient) Draw(ctx context.Context, prizeID, operator string) (*DrawResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drawCalls++

	if m.drawErr != nil {
		return nil, m.drawErr
	}
	if m.drawResult != nil {
		res := *m.drawResult
		return &res, nil
	}

	pi := m.findPrize(prizeID)
	if pi < 0 {
		return nil, notFound("prize", prizeID)
	}
	prize := &m.prizes[pi]
	remaining := prize.Count - prize.DrawnCount
	if remaining <= 0 {
		return nil, &APIError{Status: 200, Code: 400, Message: "prize already fully drawn"}
	}

	drawTime := now()
	result := &DrawResult{
		PrizeID:    prize.ID,
		PrizeName:  prize.Name,
		PrizeLevel: prize.Level,
		Winners:    []Winner{},
		DrawTime:   drawTime,
	}
	for i := range m.participants {
		if remaining == 0 {
			break
		}
		p := &m.participants[i]
		if p.Status != StatusAvailable {
			continue
		}
		p.Status = StatusWon
		p.WonPrizeID = prize.ID
		p.WonPrizeName = prize.Name
		p.WonTime = drawTime
		result.Winners = append(result.Winners, Winner{
			ID: p.ID, Name: p.Name, EmployeeID: p.EmployeeID, Department: p.Department,
		})
		m.records = append(m.records, LotteryRecord{
			ID:              m.newID("record"),
			PrizeID:         prize.ID,
			PrizeName:       prize.Name,
			PrizeLevel:      prize.Level,
			ParticipantID:   p.ID,
			ParticipantName: p.Name,
			Action:          "DRAW",
			Operator:        operatorOrDefault(operator),
			DrawTime:        drawTime,
		})
		remaining--
	}
	if len(result.Winners) == 0 {
		return nil, &APIError{Status: 200, Code: 400, Message: "no available participants"}
	}

	prize.DrawnCount += len(result.Winners)
	prize.DrawTime = drawTime
	if prize.DrawnCount >= prize.Count {
		prize.Status = PrizeCompleted
	}
	return result, nil
}

// CancelWin returns a winner to AVAILABLE and frees the prize slot
func (m *MockClient) CancelWin(ctx context.Context, participantID, operator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		return m.cancelErr
	}
	i := m.findParticipant(participantID)
	if i < 0 {
		return notFound("participant", participantID)
	}
	p := &m.participants[i]
	if p.Status != StatusWon {
		return &APIError{Status: 200, Code: 400, Message: "participant has not won"}
	}
	if pi := m.findPrize(p.WonPrizeID); pi >= 0 {
		prize := &m.prizes[pi]
		if prize.DrawnCount > 0 {
			prize.DrawnCount--
		}
		if prize.DrawnCount < prize.Count {
			prize.Status = PrizePending
		}
	}
	for j := range m.records {
		r := &m.records[j]
		if r.ParticipantID == participantID && !r.IsCancelled {
			r.IsCancelled = true
			r.CancelledTime = now()
			r.Remark = "cancelled by " + operatorOrDefault(operator)
		}
	}
	p.Status = StatusAvailable
	p.WonPrizeID = ""
	p.WonPrizeName = ""
	p.WonTime = nil
	return nil
}

// Reset returns every participant and prize to its initial state
func (m *MockClient) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
	if m.resetErr != nil {
		return m.resetErr
	}
	for i := range m.participants {
		p := &m.participants[i]
		p.Status = StatusAvailable
		p.WonPrizeID = ""
		p.WonPrizeName = ""
		p.WonTime = nil
	}
	for i := range m.prizes {
		p := &m.prizes[i]
		p.Status = PrizePending
		p.DrawnCount = 0
		p.DrawTime = nil
	}
	m.records = nil
	return nil
}

// ==================== Records ====================

// ListRecords returns every record including cancelled ones
func (m *MockClient) ListRecords(ctx context.Context) ([]LotteryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LotteryRecord(nil), m.records...), nil
}

func (m *MockClient) validRecords(keep func(LotteryRecord) bool) []LotteryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LotteryRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if !r.IsCancelled && keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// ListValidRecords returns non-cancelled records, newest first
func (m *MockClient) ListValidRecords(ctx context.Context) ([]LotteryRecord, error) {
	return m.validRecords(func(LotteryRecord) bool { return true }), nil
}

// ListRecordsByPrize returns non-cancelled records for a prize
func (m *MockClient) ListRecordsByPrize(ctx context.Context, prizeID string) ([]LotteryRecord, error) {
	return m.validRecords(func(r LotteryRecord) bool { return r.PrizeID == prizeID }), nil
}

// ListRecordsByParticipant returns non-cancelled records for a participant
func (m *MockClient) ListRecordsByParticipant(ctx context.Context, participantID string) ([]LotteryRecord, error) {
	return m.validRecords(func(r LotteryRecord) bool { return r.ParticipantID == participantID }), nil
}

// ==================== System ====================

// Health succeeds unless an error is configured
func (m *MockClient) Health(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthErr
}

// SystemInfo reports the mock version and current statistics
func (m *MockClient) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &SystemInfo{
		ServerTime:       now(),
		Version:          "mock",
		ParticipantStats: m.participantStats(),
		PrizeStats:       m.prizeStats(),
	}, nil
}

// ParseCommand classifies every transcript as chat
func (m *MockClient) ParseCommand(ctx context.Context, transcript string) (*CommandResult, error) {
	return &CommandResult{Type: CommandChat, Reply: transcript, RawText: transcript}, nil
}

// DefaultMockParticipants returns six available participants
func DefaultMockParticipants() []Participant {
	return []Participant{
		{ID: "participant-1", Name: "张伟", EmployeeID: "E001", Department: "研发部", Status: StatusAvailable},
		{ID: "participant-2", Name: "王芳", EmployeeID: "E002", Department: "市场部", Status: StatusAvailable},
		{ID: "participant-3", Name: "李娜", EmployeeID: "E003", Department: "研发部", Status: StatusAvailable},
		{ID: "participant-4", Name: "刘洋", EmployeeID: "E004", Department: "财务部", Status: StatusAvailable},
		{ID: "participant-5", Name: "陈静", EmployeeID: "E005", Department: "人事部", Status: StatusAvailable},
		{ID: "participant-6", Name: "杨磊", EmployeeID: "E006", Department: "研发部", Status: StatusAvailable},
	}
}

// DefaultMockPrizes returns three pending prizes
func DefaultMockPrizes() []Prize {
	return []Prize{
		{ID: "prize-1", Name: "一等奖", Level: 1, Count: 1, Description: "笔记本电脑", Status: PrizePending},
		{ID: "prize-2", Name: "二等奖", Level: 2, Count: 2, Description: "平板电脑", Status: PrizePending},
		{ID: "prize-3", Name: "三等奖", Level: 3, Count: 3, Description: "蓝牙耳机", Status: PrizePending},
	}
}

// Ensure MockClient implements Client
var _ Client = (*MockClient)(nil)
