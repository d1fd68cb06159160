package handlers

import (
	"net/http"
	"strconv"

	"github.com/abrezinsky/lotterydesk/internal/services"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

// maxImportSize caps a spreadsheet upload
const maxImportSize = 10 << 20

// ==================== Participants ====================

func (h *Handlers) handleGetParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.Admin.ListParticipants(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, participants)
}

func (h *Handlers) handleCreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req ParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	created, err := h.Admin.AddParticipant(r.Context(), req.participant())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.reloadAfterChange(r)
	respondCreated(w, created)
}

func (h *Handlers) handleUpdateParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req ParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	updated, err := h.Admin.UpdateParticipant(r.Context(), id, req.participant())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.reloadAfterChange(r)
	respondOK(w, updated)
}

func (h *Handlers) handleDeleteParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.Admin.DeleteParticipants(r.Context(), []string{id}); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.reloadAfterChange(r)
	respondDeleted(w)
}

func (h *Handlers) handleDeleteParticipants(w http.ResponseWriter, r *http.Request) {
	var req DeleteParticipantsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.Admin.DeleteParticipants(r.Context(), req.IDs); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.reloadAfterChange(r)
	respondDeleted(w)
}

func (h *Handlers) handleImportParticipants(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, r, BadRequest("Missing file upload"))
		return
	}
	defer file.Close()

	result, err := h.Admin.ImportParticipants(r.Context(), header.Filename, file)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.reloadAfterChange(r)
	respondOK(w, result)
}

// ==================== Prizes ====================

func (h *Handlers) handleGetPrizes(w http.ResponseWriter, r *http.Request) {
	prizes, err := h.Admin.ListPrizes(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, prizes)
}

func (h *Handlers) handleCreatePrize(w http.ResponseWriter, r *http.Request) {
	var req PrizeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	created, err := h.Admin.CreatePrize(r.Context(), req.prize())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.reloadAfterChange(r)
	respondCreated(w, created)
}

func (h *Handlers) handleUpdatePrize(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req PrizeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	updated, err := h.Admin.UpdatePrize(r.Context(), id, req.prize())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.reloadAfterChange(r)
	respondOK(w, updated)
}

func (h *Handlers) handleDeletePrize(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.Admin.DeletePrize(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.reloadAfterChange(r)
	respondDeleted(w)
}

func (h *Handlers) handleNextPrize(w http.ResponseWriter, r *http.Request) {
	prize, err := h.Admin.NextPendingPrize(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if prize == nil {
		h.respondError(w, r, NotFound("All prizes have been drawn"))
		return
	}
	respondOK(w, prize)
}

// ==================== Stats & Records ====================

func (h *Handlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Admin.Statistics(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, stats)
}

func (h *Handlers) handleGetRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.RecordFilter{
		PrizeID:       q.Get("prize_id"),
		ParticipantID: q.Get("participant_id"),
	}
	if raw := q.Get("all"); raw != "" {
		all, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(w, r, BadRequest("Invalid all parameter"))
			return
		}
		filter.All = all
	}

	records, err := h.Admin.Records(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, records)
}

func (h *Handlers) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.Lottery.SystemInfo(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, info)
}

// ==================== Settings ====================

func (h *Handlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	baseURL, err := h.Settings.GetBaseURL(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, SettingsResponse{BaseURL: baseURL, ServiceURL: h.Lottery.BaseURL()})
}

func (h *Handlers) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	if req.BaseURL != nil {
		if err := h.Settings.SetBaseURL(r.Context(), *req.BaseURL); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	h.handleGetSettings(w, r)
}

func (h *Handlers) handleResetJournal(w http.ResponseWriter, r *http.Request) {
	var req JournalResetRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.Settings.ResetJournal(r.Context(), req.Tables)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, result)
}

// reloadAfterChange refreshes the drawing session so displays see admin edits.
// A failed reload is logged; the edit itself already succeeded.
func (h *Handlers) reloadAfterChange(r *http.Request) {
	if err := h.Store.LoadAll(r.Context()); err != nil {
		h.log.Warn("Reload after change failed", "path", r.URL.Path, "error", lotteryapi.MessageOf(err))
	}
}
