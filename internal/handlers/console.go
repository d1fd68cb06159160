package handlers

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/abrezinsky/lotterydesk/internal/errors"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

// ==================== Drawing Session ====================

func (h *Handlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.Store.Snapshot())
}

func (h *Handlers) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.LoadAll(r.Context()); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, h.Store.Snapshot())
}

func (h *Handlers) handleStartDraw(w http.ResponseWriter, r *http.Request) {
	var req StartDrawRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	req.PrizeID = strings.TrimSpace(req.PrizeID)
	if req.PrizeID == "" {
		h.respondError(w, r, errors.InvalidInput("prize_id is required"))
		return
	}

	prize, ok := h.Store.FindPrize(req.PrizeID)
	if !ok {
		// not in the cache yet; the service may know it
		remote, err := h.Lottery.GetPrize(r.Context(), req.PrizeID)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		prize = *remote
	}

	h.Store.StartDraw(prize)
	respondOK(w, h.Store.Snapshot())
}

func (h *Handlers) handleStopDraw(w http.ResponseWriter, r *http.Request) {
	if h.Store.CurrentPrize() == nil {
		h.respondError(w, r, errors.Conflict("no prize selected for drawing"))
		return
	}

	result, err := h.Store.StopDraw(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, DrawResponse{Result: result, State: h.Store.Snapshot()})
}

func (h *Handlers) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, h.Store.Snapshot())
}

func (h *Handlers) handleCancelWin(w http.ResponseWriter, r *http.Request) {
	var req CancelWinRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	req.ParticipantID = strings.TrimSpace(req.ParticipantID)
	if req.ParticipantID == "" {
		h.respondError(w, r, errors.InvalidInput("participant_id is required"))
		return
	}

	if err := h.Store.CancelWin(r.Context(), req.ParticipantID); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, h.Store.Snapshot())
}

// ==================== Chat ====================

func (h *Handlers) chatResponse() ChatResponse {
	return ChatResponse{Messages: h.Store.ChatMessages(), Connected: h.Voice.Connected()}
}

func (h *Handlers) handleGetChat(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.chatResponse())
}

func (h *Handlers) handleSay(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.Voice.Say(r.Context(), req.Text); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, h.chatResponse())
}

func (h *Handlers) handleClearChat(w http.ResponseWriter, r *http.Request) {
	h.Store.ClearChatMessages(r.Context())
	respondDeleted(w)
}

// ==================== Journal & Display ====================

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	entries, err := h.Settings.History(r.Context(), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, entries)
}

func (h *Handlers) handleDisplay(w http.ResponseWriter, r *http.Request) {
	page, err := fs.ReadFile(h.Static, "display.html")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (h *Handlers) handleDisplayQR(w http.ResponseWriter, r *http.Request) {
	png, err := h.Settings.DisplayQR(r.Context(), requestBaseURL(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// requestBaseURL reconstructs the URL the caller used to reach the console
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Service: "ok", Messaging: h.Voice.Connected()}
	if h.Hub != nil {
		resp.Displays = h.Hub.ClientCount()
	}

	status := http.StatusOK
	if err := h.Lottery.Health(r.Context()); err != nil {
		resp.Service = "unreachable"
		resp.ServiceError = lotteryapi.MessageOf(err)
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}
