package handlers

import (
	"github.com/abrezinsky/lotterydesk/internal/models"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

// SessionResponse reports whether the caller is logged in as operator
type SessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

// DrawResponse is the outcome of stopping a draw
type DrawResponse struct {
	Result *lotteryapi.DrawResult `json:"result"`
	State  models.Snapshot        `json:"state"`
}

// ChatResponse lists the current chat log
type ChatResponse struct {
	Messages  []models.ChatMessage `json:"messages"`
	Connected bool                 `json:"connected"`
}

// HealthResponse summarizes the console's dependencies
type HealthResponse struct {
	Service      string `json:"service"`
	ServiceError string `json:"service_error,omitempty"`
	Messaging    bool   `json:"messaging_connected"`
	Displays     int    `json:"displays"`
}

// SettingsResponse lists console settings
type SettingsResponse struct {
	BaseURL    string `json:"base_url"`
	ServiceURL string `json:"service_url"`
}
