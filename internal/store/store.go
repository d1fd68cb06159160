// Package store holds the drawing session state shared by the console,
// the voice-command bridge and the display screens.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abrezinsky/lotterydesk/internal/logger"
	"github.com/abrezinsky/lotterydesk/internal/models"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

const (
	// DefaultChatLimit is how many chat messages are kept
	DefaultChatLimit = 20

	UserSender = "用户"
	AISender   = "小宝"

	SourceDraw = "draw"
	SourcePush = "push"
)

// Broadcaster fans messages out to display screens
type Broadcaster interface {
	BroadcastMessage(msgType string, payload interface{})
}

// ChatRepository journals chat messages across restarts
type ChatRepository interface {
	SaveChatMessage(ctx context.Context, msg models.ChatMessage) error
	RecentChatMessages(ctx context.Context, limit int) ([]models.ChatMessage, error)
	ClearChatMessages(ctx context.Context) error
}

// ResultRepository journals draw results
type ResultRepository interface {
	SaveDrawResult(ctx context.Context, result lotteryapi.DrawResult, source string) error
}

// Option configures a Store
type Option func(*Store)

// WithBroadcaster sends state and chat changes to b
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Store) {
		s.broadcaster = b
	}
}

// WithChatRepository journals chat messages to repo
func WithChatRepository(repo ChatRepository) Option {
	return func(s *Store) {
		s.chatRepo = repo
	}
}

// WithResultRepository journals draw results to repo
func WithResultRepository(repo ResultRepository) Option {
	return func(s *Store) {
		s.resultRepo = repo
	}
}

// WithChatLimit overrides the chat log capacity
func WithChatLimit(limit int) Option {
	return func(s *Store) {
		s.chat = newChatLog(limit)
	}
}

// WithOperator sets the operator name sent with draws and cancellations
func WithOperator(name string) Option {
	return func(s *Store) {
		s.operator = name
	}
}

// Store is the drawing session state. It is safe for concurrent use but does
// not coordinate overlapping operations.
type Store struct {
	client      lotteryapi.Client
	log         logger.Logger
	broadcaster Broadcaster
	chatRepo    ChatRepository
	resultRepo  ResultRepository
	operator    string

	mu           sync.RWMutex
	prizes       []lotteryapi.Prize
	participants []lotteryapi.Participant
	currentPrize *lotteryapi.Prize
	isDrawing    bool
	winners      []lotteryapi.Winner
	chat         *chatLog
}

// New creates a Store backed by client
func New(client lotteryapi.Client, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		client:       client,
		log:          log,
		prizes:       []lotteryapi.Prize{},
		participants: []lotteryapi.Participant{},
		winners:      []lotteryapi.Winner{},
		chat:         newChatLog(DefaultChatLimit),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the REST client the store reloads from
func (s *Store) Client() lotteryapi.Client {
	return s.client
}

// ==================== Loading ====================

// LoadPrizes replaces the prize list from the server
func (s *Store) LoadPrizes(ctx context.Context) error {
	prizes, err := s.client.ListPrizes(ctx)
	if err != nil {
		s.log.Error("Failed to load prizes", "error", lotteryapi.MessageOf(err))
		return fmt.Errorf("load prizes: %w", err)
	}
	if prizes == nil {
		prizes = []lotteryapi.Prize{}
	}

	s.mu.Lock()
	s.prizes = prizes
	s.mu.Unlock()

	s.broadcastState()
	return nil
}

// LoadParticipants replaces the participant list from the server
func (s *Store) LoadParticipants(ctx context.Context) error {
	participants, err := s.client.ListParticipants(ctx)
	if err != nil {
		s.log.Error("Failed to load participants", "error", lotteryapi.MessageOf(err))
		return fmt.Errorf("load participants: %w", err)
	}
	if participants == nil {
		participants = []lotteryapi.Participant{}
	}

	s.mu.Lock()
	s.participants = participants
	s.mu.Unlock()

	s.broadcastState()
	return nil
}

// LoadAll reloads prizes and participants in parallel and returns the first error.
// A failed load does not cancel the other one.
func (s *Store) LoadAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.LoadPrizes(ctx) })
	g.Go(func() error { return s.LoadParticipants(ctx) })
	return g.Wait()
}

// ==================== Drawing ====================

// StartDraw selects prize as the current prize and clears the previous winners
func (s *Store) StartDraw(prize lotteryapi.Prize) {
	s.mu.Lock()
	p := prize
	s.currentPrize = &p
	s.isDrawing = true
	s.winners = []lotteryapi.Winner{}
	s.mu.Unlock()

	s.log.Info("Draw started", "prize_id", prize.ID, "prize_name", prize.Name)
	s.broadcastState()
}

// StopDraw runs the draw for the current prize and reloads the lists.
// It returns nil, nil when no prize is selected.
func (s *Store) StopDraw(ctx context.Context) (*lotteryapi.DrawResult, error) {
	s.mu.RLock()
	prize := s.currentPrize
	s.mu.RUnlock()

	if prize == nil {
		return nil, nil
	}

	result, err := s.client.Draw(ctx, prize.ID, s.operator)
	if err != nil {
		s.finishDraw()
		s.log.Error("Draw failed", "prize_id", prize.ID, "error", lotteryapi.MessageOf(err))
		return nil, fmt.Errorf("draw: %w", err)
	}

	s.mu.Lock()
	s.winners = copyWinners(result.Winners)
	s.mu.Unlock()

	s.journalResult(ctx, *result, SourceDraw)

	if err := s.LoadAll(ctx); err != nil {
		s.finishDraw()
		return nil, err
	}

	s.finishDraw()
	s.log.Info("Draw finished", "prize_id", result.PrizeID, "winners", len(result.Winners))
	return result, nil
}

func (s *Store) finishDraw() {
	s.mu.Lock()
	s.isDrawing = false
	s.mu.Unlock()
	s.broadcastState()
}

// Reset resets the server, reloads and clears the local draw state
func (s *Store) Reset(ctx context.Context) error {
	if err := s.client.Reset(ctx); err != nil {
		s.log.Error("Reset failed", "error", lotteryapi.MessageOf(err))
		return fmt.Errorf("reset: %w", err)
	}
	if err := s.LoadAll(ctx); err != nil {
		return err
	}
	s.ClearDrawState()
	s.log.Info("Lottery reset")
	return nil
}

// ClearDrawState forgets the current prize and winners without calling the server
func (s *Store) ClearDrawState() {
	s.mu.Lock()
	s.currentPrize = nil
	s.isDrawing = false
	s.winners = []lotteryapi.Winner{}
	s.mu.Unlock()
	s.broadcastState()
}

// CancelWin revokes a participant's win and reloads
func (s *Store) CancelWin(ctx context.Context, participantID string) error {
	if err := s.client.CancelWin(ctx, participantID, s.operator); err != nil {
		s.log.Error("Cancel win failed", "participant_id", participantID, "error", lotteryapi.MessageOf(err))
		return fmt.Errorf("cancel win: %w", err)
	}
	s.log.Info("Win cancelled", "participant_id", participantID)
	return s.LoadAll(ctx)
}

// ApplyLotteryResult replaces the winners with a pushed draw result and journals it
func (s *Store) ApplyLotteryResult(ctx context.Context, result lotteryapi.DrawResult) {
	s.mu.Lock()
	s.winners = copyWinners(result.Winners)
	s.mu.Unlock()

	s.journalResult(ctx, result, SourcePush)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(models.MsgLotteryResult, result)
	}
	s.broadcastState()
}

func (s *Store) journalResult(ctx context.Context, result lotteryapi.DrawResult, source string) {
	if s.resultRepo == nil {
		return
	}
	if err := s.resultRepo.SaveDrawResult(ctx, result, source); err != nil {
		s.log.Warn("Failed to journal draw result", "prize_id", result.PrizeID, "error", err)
	}
}

// ==================== Chat ====================

// AddChatMessage appends msg, filling in a missing ID and timestamp
func (s *Store) AddChatMessage(ctx context.Context, msg models.ChatMessage) models.ChatMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.chat.add(msg)
	s.mu.Unlock()

	if s.chatRepo != nil {
		if err := s.chatRepo.SaveChatMessage(ctx, msg); err != nil {
			s.log.Warn("Failed to journal chat message", "id", msg.ID, "error", err)
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(models.MsgChat, msg)
	}
	return msg
}

// AddUserMessage appends a message typed or spoken by the operator
func (s *Store) AddUserMessage(ctx context.Context, text string) models.ChatMessage {
	return s.AddChatMessage(ctx, models.ChatMessage{
		Type:    models.ChatTypeUser,
		Sender:  UserSender,
		Content: text,
	})
}

// AddAIMessage appends an assistant reply; commandType defaults to CHAT
func (s *Store) AddAIMessage(ctx context.Context, text, commandType string) models.ChatMessage {
	if commandType == "" {
		commandType = lotteryapi.CommandChat
	}
	return s.AddChatMessage(ctx, models.ChatMessage{
		Type:        models.ChatTypeAI,
		Sender:      AISender,
		Content:     text,
		CommandType: commandType,
	})
}

// ClearChatMessages empties the chat log and its journal
func (s *Store) ClearChatMessages(ctx context.Context) {
	s.mu.Lock()
	s.chat.clear()
	s.mu.Unlock()

	if s.chatRepo != nil {
		if err := s.chatRepo.ClearChatMessages(ctx); err != nil {
			s.log.Warn("Failed to clear chat journal", "error", err)
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(models.MsgChatCleared, nil)
	}
}

// RestoreChat reloads the most recent journaled chat messages
func (s *Store) RestoreChat(ctx context.Context) error {
	if s.chatRepo == nil {
		return nil
	}

	s.mu.RLock()
	limit := s.chat.limit
	s.mu.RUnlock()

	msgs, err := s.chatRepo.RecentChatMessages(ctx, limit)
	if err != nil {
		return fmt.Errorf("restore chat: %w", err)
	}

	s.mu.Lock()
	s.chat.clear()
	for _, m := range msgs {
		s.chat.add(m)
	}
	s.mu.Unlock()

	s.log.Debug("Chat restored", "messages", len(msgs))
	return nil
}

// ChatMessages returns the chat log, oldest first
func (s *Store) ChatMessages() []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chat.list()
}

// ==================== Views ====================

// Prizes returns the cached prize list
func (s *Store) Prizes() []lotteryapi.Prize {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]lotteryapi.Prize(nil), s.prizes...)
}

// Participants returns the cached participant list
func (s *Store) Participants() []lotteryapi.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]lotteryapi.Participant(nil), s.participants...)
}

// CurrentPrize returns the prize being drawn, or nil
func (s *Store) CurrentPrize() *lotteryapi.Prize {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentPrize == nil {
		return nil
	}
	p := *s.currentPrize
	return &p
}

// IsDrawing reports whether a draw is in progress
func (s *Store) IsDrawing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isDrawing
}

// Winners returns the winners of the latest draw
func (s *Store) Winners() []lotteryapi.Winner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyWinners(s.winners)
}

// PendingPrizes returns prizes with status PENDING
func (s *Store) PendingPrizes() []lotteryapi.Prize {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pendingPrizes(s.prizes)
}

// AvailableParticipants returns participants with status AVAILABLE
func (s *Store) AvailableParticipants() []lotteryapi.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return participantsWithStatus(s.participants, lotteryapi.StatusAvailable)
}

// WonParticipants returns participants with status WON
func (s *Store) WonParticipants() []lotteryapi.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return participantsWithStatus(s.participants, lotteryapi.StatusWon)
}

// FindPrize returns the cached prize with id
func (s *Store) FindPrize(id string) (lotteryapi.Prize, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.prizes {
		if p.ID == id {
			return p, true
		}
	}
	return lotteryapi.Prize{}, false
}

// Snapshot returns a copy of the whole session state
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.Snapshot{
		Prizes:                append([]lotteryapi.Prize{}, s.prizes...),
		Participants:          append([]lotteryapi.Participant{}, s.participants...),
		IsDrawing:             s.isDrawing,
		Winners:               copyWinners(s.winners),
		PendingPrizes:         pendingPrizes(s.prizes),
		AvailableParticipants: participantsWithStatus(s.participants, lotteryapi.StatusAvailable),
		WonParticipants:       participantsWithStatus(s.participants, lotteryapi.StatusWon),
		ChatMessages:          s.chat.list(),
	}
	if s.currentPrize != nil {
		p := *s.currentPrize
		snap.CurrentPrize = &p
	}
	return snap
}

func (s *Store) broadcastState() {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastMessage(models.MsgState, s.Snapshot())
}

func pendingPrizes(prizes []lotteryapi.Prize) []lotteryapi.Prize {
	out := []lotteryapi.Prize{}
	for _, p := range prizes {
		if p.Status == lotteryapi.PrizePending {
			out = append(out, p)
		}
	}
	return out
}

func participantsWithStatus(participants []lotteryapi.Participant, status string) []lotteryapi.Participant {
	out := []lotteryapi.Participant{}
	for _, p := range participants {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

func copyWinners(winners []lotteryapi.Winner) []lotteryapi.Winner {
	out := make([]lotteryapi.Winner, len(winners))
	copy(out, winners)
	return out
}
