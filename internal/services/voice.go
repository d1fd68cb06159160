package services

import (
	"context"
	"errors"
	"strings"

	"github.com/abrezinsky/lotterydesk/internal/logger"
	"github.com/abrezinsky/lotterydesk/internal/models"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryws"
)

// Chat replies written by the console itself
const (
	replyNotConnected = "语音服务未连接，请稍后再试"
	replySendFailed   = "指令发送失败："
	replyDrawFailed   = "抽奖失败："
)

// Messenger is the push channel to the lottery service
type Messenger interface {
	Connected() bool
	SendVoiceCommand(transcript, sessionID string) error
	SubscribeCommandResult(cb func(lotteryapi.CommandResponse)) error
	SubscribeLotteryResult(cb func(lotteryapi.DrawResult)) error
}

// LotteryStore is the session state the voice bridge drives
type LotteryStore interface {
	AddUserMessage(ctx context.Context, text string) models.ChatMessage
	AddAIMessage(ctx context.Context, text, commandType string) models.ChatMessage
	StartDraw(prize lotteryapi.Prize)
	StopDraw(ctx context.Context) (*lotteryapi.DrawResult, error)
	ClearDrawState()
	LoadAll(ctx context.Context) error
	ApplyLotteryResult(ctx context.Context, result lotteryapi.DrawResult)
}

// VoiceService bridges the chat panel and the lottery service's command channel
type VoiceService struct {
	log       logger.Logger
	store     LotteryStore
	messenger Messenger
	sessionID string
}

// NewVoiceService creates a new VoiceService
func NewVoiceService(log logger.Logger, store LotteryStore, messenger Messenger, sessionID string) *VoiceService {
	if sessionID == "" {
		sessionID = lotteryws.DefaultSessionID
	}
	return &VoiceService{log: log, store: store, messenger: messenger, sessionID: sessionID}
}

// Connected reports whether voice commands can be sent
func (s *VoiceService) Connected() bool {
	return s.messenger.Connected()
}

// Say records text as a user message and sends it as a voice command.
// When sending fails an assistant message explains why.
func (s *VoiceService) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyTranscript
	}

	s.store.AddUserMessage(ctx, text)

	if err := s.messenger.SendVoiceCommand(text, s.sessionID); err != nil {
		if errors.Is(err, lotteryws.ErrNotConnected) {
			s.store.AddAIMessage(ctx, replyNotConnected, lotteryapi.CommandChat)
		} else {
			s.store.AddAIMessage(ctx, replySendFailed+err.Error(), lotteryapi.CommandChat)
		}
		s.log.Warn("Voice command not sent", "error", err)
		return err
	}

	s.log.Info("Voice command sent", "transcript", text)
	return nil
}

// Attach subscribes to command results and lottery results
func (s *VoiceService) Attach() error {
	if err := s.messenger.SubscribeCommandResult(func(resp lotteryapi.CommandResponse) {
		s.HandleCommandResult(context.Background(), resp)
	}); err != nil {
		return err
	}
	return s.messenger.SubscribeLotteryResult(func(result lotteryapi.DrawResult) {
		s.HandleLotteryResult(context.Background(), result)
	})
}

// HandleCommandResult shows the reply and performs the attached action
func (s *VoiceService) HandleCommandResult(ctx context.Context, resp lotteryapi.CommandResponse) {
	s.log.Debug("Command result received", "type", resp.Type, "success", resp.Success)

	if resp.Reply != "" {
		s.store.AddAIMessage(ctx, resp.Reply, resp.Type)
	}
	if resp.Data == nil {
		return
	}

	switch resp.Data.Action {
	case lotteryapi.CommandStartDraw:
		if resp.Data.Prize == nil {
			s.log.Warn("START_DRAW without a prize")
			return
		}
		s.store.StartDraw(*resp.Data.Prize)

	case lotteryapi.CommandStopDraw:
		if _, err := s.store.StopDraw(ctx); err != nil {
			s.store.AddAIMessage(ctx, replyDrawFailed+lotteryapi.MessageOf(err), lotteryapi.CommandStopDraw)
		}

	case lotteryapi.CommandReset:
		s.store.ClearDrawState()
		s.reload(ctx)

	case lotteryapi.CommandCancel:
		s.reload(ctx)

	default:
		s.log.Debug("Ignoring command action", "action", resp.Data.Action)
	}
}

// HandleLotteryResult applies a pushed draw result and refreshes the lists
func (s *VoiceService) HandleLotteryResult(ctx context.Context, result lotteryapi.DrawResult) {
	s.log.Info("Lottery result received", "prize_id", result.PrizeID, "winners", len(result.Winners))
	s.store.ApplyLotteryResult(ctx, result)
	s.reload(ctx)
}

func (s *VoiceService) reload(ctx context.Context) {
	if err := s.store.LoadAll(ctx); err != nil {
		s.log.Warn("Reload after command failed", "error", err)
	}
}
