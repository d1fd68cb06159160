package handlers

import "github.com/abrezinsky/lotterydesk/pkg/lotteryapi"

// LoginRequest carries the operator password
type LoginRequest struct {
	Password string `json:"password"`
}

// StartDrawRequest selects the prize to draw
type StartDrawRequest struct {
	PrizeID string `json:"prize_id"`
}

// CancelWinRequest names the participant whose win is revoked
type CancelWinRequest struct {
	ParticipantID string `json:"participant_id"`
}

// ChatRequest is a typed voice command
type ChatRequest struct {
	Text string `json:"text"`
}

// ParticipantRequest creates or updates a participant
type ParticipantRequest struct {
	Name       string `json:"name"`
	EmployeeID string `json:"employee_id"`
	Department string `json:"department"`
}

// DeleteParticipantsRequest lists participants to delete
type DeleteParticipantsRequest struct {
	IDs []string `json:"ids"`
}

// PrizeRequest creates or updates a prize
type PrizeRequest struct {
	Name        string `json:"name"`
	Level       int    `json:"level"`
	Count       int    `json:"count"`
	Description string `json:"description"`
}

// SettingsUpdateRequest updates console settings
type SettingsUpdateRequest struct {
	BaseURL *string `json:"base_url"`
}

// JournalResetRequest names the journal tables to clear
type JournalResetRequest struct {
	Tables []string `json:"tables"`
}

func (req ParticipantRequest) participant() lotteryapi.Participant {
	return lotteryapi.Participant{Name: req.Name, EmployeeID: req.EmployeeID, Department: req.Department}
}

func (req PrizeRequest) prize() lotteryapi.Prize {
	return lotteryapi.Prize{Name: req.Name, Level: req.Level, Count: req.Count, Description: req.Description}
}
