package lotteryapi

import (
	"encoding/json"
	"fmt"
	"time"
)

// Participant statuses reported by the lottery service
const (
	StatusAvailable = "AVAILABLE"
	StatusWon       = "WON"
)

// Prize statuses reported by the lottery service
const (
	PrizePending   = "PENDING"
	PrizeDrawing   = "DRAWING"
	PrizeCompleted = "COMPLETED"
)

// DefaultOperator is recorded by the service when no operator name is given
const DefaultOperator = "System"

// serverTimeLayout is the zone-less ISO layout the service uses for LocalDateTime
const serverTimeLayout = "2006-01-02T15:04:05.999999999"

// FlexTime is a timestamp that can be unmarshaled from an ISO local date-time,
// an RFC 3339 string, or a Jackson-style array [year, month, day, hour, minute, second, nanos].
type FlexTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler for FlexTime
func (f *FlexTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		f.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			f.Time = time.Time{}
			return nil
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			f.Time = t
			return nil
		}
		for _, layout := range []string{serverTimeLayout, "2006-01-02 15:04:05"} {
			if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				f.Time = t
				return nil
			}
		}
		return fmt.Errorf("FlexTime: cannot parse %q", s)
	}

	var parts []int
	if err := json.Unmarshal(data, &parts); err == nil && len(parts) >= 3 {
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		f.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.Local)
		return nil
	}

	return fmt.Errorf("FlexTime: cannot unmarshal %s", string(data))
}

// MarshalJSON writes the zone-less layout the service accepts
func (f FlexTime) MarshalJSON() ([]byte, error) {
	if f.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Format(serverTimeLayout))
}

// Participant is a person entered in the lottery
type Participant struct {
	ID           string    `json:"id,omitempty"`
	Name         string    `json:"name"`
	EmployeeID   string    `json:"employeeId,omitempty"`
	Department   string    `json:"department,omitempty"`
	Status       string    `json:"status,omitempty"`
	WonPrizeID   string    `json:"wonPrizeId,omitempty"`
	WonPrizeName string    `json:"wonPrizeName,omitempty"`
	WonTime      *FlexTime `json:"wonTime,omitempty"`
	CreatedAt    *FlexTime `json:"createdAt,omitempty"`
	UpdatedAt    *FlexTime `json:"updatedAt,omitempty"`
}

// Prize is a prize tier; lower Level means a more important prize
type Prize struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Level       int       `json:"level"`
	Count       int       `json:"count"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	DrawnCount  int       `json:"drawnCount"`
	DrawTime    *FlexTime `json:"drawTime,omitempty"`
	CreatedAt   *FlexTime `json:"createdAt,omitempty"`
	UpdatedAt   *FlexTime `json:"updatedAt,omitempty"`
}

// Winner is a participant selected by a draw
type Winner struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EmployeeID string `json:"employeeId,omitempty"`
	Department string `json:"department,omitempty"`
}

// DrawResult is returned by the draw endpoint and pushed on /topic/lottery-result
type DrawResult struct {
	PrizeID    string    `json:"prizeId"`
	PrizeName  string    `json:"prizeName"`
	PrizeLevel int       `json:"prizeLevel"`
	Winners    []Winner  `json:"winners"`
	DrawTime   *FlexTime `json:"drawTime,omitempty"`
}

// LotteryRecord is one row of the service's draw audit log
type LotteryRecord struct {
	ID              string    `json:"id"`
	PrizeID         string    `json:"prizeId"`
	PrizeName       string    `json:"prizeName"`
	PrizeLevel      int       `json:"prizeLevel"`
	ParticipantID   string    `json:"participantId"`
	ParticipantName string    `json:"participantName"`
	Action          string    `json:"action"`
	IsCancelled     bool      `json:"isCancelled"`
	CancelledTime   *FlexTime `json:"cancelledTime,omitempty"`
	Operator        string    `json:"operator,omitempty"`
	Remark          string    `json:"remark,omitempty"`
	DrawTime        *FlexTime `json:"drawTime,omitempty"`
}

// ParticipantStatistics summarizes participant counts
type ParticipantStatistics struct {
	Total     int64   `json:"total"`
	Available int64   `json:"available"`
	Won       int64   `json:"won"`
	WinRate   float64 `json:"winRate"`
}

// PrizeStatistics summarizes prize progress
type PrizeStatistics struct {
	TotalPrizes      int64 `json:"totalPrizes"`
	PendingPrizes    int64 `json:"pendingPrizes"`
	CompletedPrizes  int64 `json:"completedPrizes"`
	TotalWinnerSlots int   `json:"totalWinnerSlots"`
	TotalDrawn       int   `json:"totalDrawn"`
}

// ImportResult reports the outcome of a spreadsheet import
type ImportResult struct {
	Total   int      `json:"total"`
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// SystemInfo is the service's status page
type SystemInfo struct {
	ServerTime       *FlexTime              `json:"serverTime,omitempty"`
	Version          string                 `json:"version"`
	ParticipantStats *ParticipantStatistics `json:"participantStats,omitempty"`
	PrizeStats       *PrizeStatistics       `json:"prizeStats,omitempty"`
}

// Voice command types produced by the service's command parser
const (
	CommandWakeup    = "WAKEUP"
	CommandStartDraw = "START_DRAW"
	CommandStopDraw  = "STOP_DRAW"
	CommandReset     = "RESET"
	CommandCancel    = "CANCEL"
	CommandChat      = "CHAT"
)

// CommandResult is the parsed form of a transcript
type CommandResult struct {
	Type    string                 `json:"type"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Reply   string                 `json:"reply"`
	RawText string                 `json:"rawText,omitempty"`
}

// CommandData is the action payload attached to a command response
type CommandData struct {
	Action      string       `json:"action"`
	Prize       *Prize       `json:"prize,omitempty"`
	Participant *Participant `json:"participant,omitempty"`
}

// CommandResponse is pushed on /topic/command-result after a voice command
type CommandResponse struct {
	Success bool                   `json:"success"`
	Type    string                 `json:"type"`
	Reply   string                 `json:"reply"`
	RawText string                 `json:"rawText,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Data    *CommandData           `json:"data,omitempty"`
}

// VoiceCommand is the payload published to /app/voice-command
type VoiceCommand struct {
	Transcript string `json:"transcript"`
	SessionID  string `json:"sessionId"`
}
