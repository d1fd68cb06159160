package models

import (
	"time"

	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

// Chat message types
const (
	ChatTypeUser = "user"
	ChatTypeAI   = "ai"
)

// WebSocket message types sent to display screens
const (
	MsgState         = "state"
	MsgChat          = "chat"
	MsgChatCleared   = "chat_cleared"
	MsgLotteryResult = "lottery_result"
)

// ChatMessage is one entry of the voice-command chat panel
type ChatMessage struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // user or ai
	Sender      string    `json:"sender"`
	Content     string    `json:"content"`
	CommandType string    `json:"command_type,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Snapshot is a read-only copy of the drawing session state
type Snapshot struct {
	Prizes                []lotteryapi.Prize       `json:"prizes"`
	Participants          []lotteryapi.Participant `json:"participants"`
	CurrentPrize          *lotteryapi.Prize        `json:"current_prize"`
	IsDrawing             bool                     `json:"is_drawing"`
	Winners               []lotteryapi.Winner      `json:"winners"`
	PendingPrizes         []lotteryapi.Prize       `json:"pending_prizes"`
	AvailableParticipants []lotteryapi.Participant `json:"available_participants"`
	WonParticipants       []lotteryapi.Participant `json:"won_participants"`
	ChatMessages          []ChatMessage            `json:"chat_messages"`
}

// DrawHistoryEntry is a draw result journaled by the console
type DrawHistoryEntry struct {
	ID         int64               `json:"id"`
	PrizeID    string              `json:"prize_id"`
	PrizeName  string              `json:"prize_name"`
	PrizeLevel int                 `json:"prize_level"`
	Winners    []lotteryapi.Winner `json:"winners"`
	Source     string              `json:"source"` // draw or push
	DrawnAt    time.Time           `json:"drawn_at"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
