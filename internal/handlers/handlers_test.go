package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/abrezinsky/lotterydesk/internal/auth"
	"github.com/abrezinsky/lotterydesk/internal/handlers"
	"github.com/abrezinsky/lotterydesk/internal/logger"
	"github.com/abrezinsky/lotterydesk/internal/models"
	"github.com/abrezinsky/lotterydesk/internal/services"
	"github.com/abrezinsky/lotterydesk/internal/store"
	"github.com/abrezinsky/lotterydesk/internal/testutil"
	"github.com/abrezinsky/lotterydesk/internal/websocket"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryws"
)

const testPassword = "lantern-dragon-tiger"

// fakeMessenger stands in for the STOMP client
type fakeMessenger struct {
	mu        sync.Mutex
	connected bool
	sent      []string
}

func (f *fakeMessenger) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeMessenger) SendVoiceCommand(transcript, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return lotteryws.ErrNotConnected
	}
	f.sent = append(f.sent, transcript)
	return nil
}

func (f *fakeMessenger) SubscribeCommandResult(cb func(lotteryapi.CommandResponse)) error {
	return nil
}

func (f *fakeMessenger) SubscribeLotteryResult(cb func(lotteryapi.DrawResult)) error {
	return nil
}

type testEnv struct {
	handlers  *handlers.Handlers
	router    http.Handler
	client    *lotteryapi.MockClient
	store     *store.Store
	messenger *fakeMessenger
	token     string
}

func newTestEnv(t *testing.T, opts ...lotteryapi.MockOption) *testEnv {
	t.Helper()

	log := logger.Discard()
	repo := testutil.NewTestRepository(t)
	defaults := []lotteryapi.MockOption{
		lotteryapi.WithParticipants(lotteryapi.DefaultMockParticipants()),
		lotteryapi.WithPrizes(lotteryapi.DefaultMockPrizes()),
	}
	client := lotteryapi.NewMockClient(append(defaults, opts...)...)

	hub := websocket.New(log, nil)
	st := store.New(client, log,
		store.WithBroadcaster(hub),
		store.WithChatRepository(repo),
		store.WithResultRepository(repo),
	)
	hub.SetStateProvider(st)
	// A failing list option is exercised by individual tests
	_ = st.LoadAll(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub.Start(ctx)

	messenger := &fakeMessenger{connected: true}
	voice := services.NewVoiceService(log, st, messenger, "")
	admin := services.NewAdminService(log, client)
	settings := services.NewSettingsService(log, repo)
	operatorAuth := auth.New(testPassword)

	token, ok := operatorAuth.Login(testPassword)
	if !ok {
		t.Fatal("login with configured password failed")
	}

	h := handlers.New(log, st, voice, admin, settings, client, operatorAuth, hub)
	return &testEnv{
		handlers:  h,
		router:    h.Router(),
		client:    client,
		store:     st,
		messenger: messenger,
		token:     token,
	}
}

// do sends an unauthenticated request
func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return e.serve(newRequest(t, method, path, body))
}

// doAuth sends a request carrying the operator session cookie
func (e *testEnv) doAuth(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := newRequest(t, method, path, body)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: e.token})
	return e.serve(req)
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func newRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(target); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
}

func expectErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, w, status)
	var body handlers.APIError
	decode(t, w, &body)
	if body.Code != code {
		t.Errorf("expected error code %s, got %s (%s)", code, body.Code, body.Message)
	}
}

// ==================== Auth ====================

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		password string
		status   int
	}{
		{"correct password", testPassword, http.StatusOK},
		{"wrong password", "nope", http.StatusUnauthorized},
		{"empty password", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/login", handlers.LoginRequest{Password: tt.password})
			expectStatus(t, w, tt.status)

			var cookie *http.Cookie
			for _, c := range w.Result().Cookies() {
				if c.Name == auth.CookieName {
					cookie = c
				}
			}
			if tt.status == http.StatusOK && (cookie == nil || cookie.Value == "") {
				t.Error("expected session cookie on successful login")
			}
			if tt.status != http.StatusOK && cookie != nil {
				t.Error("expected no session cookie on failed login")
			}
		})
	}
}

func TestLogin_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/login", "{not json")
	expectErrorCode(t, w, http.StatusBadRequest, handlers.ErrCodeBadRequest)
}

func TestSessionAndLogout(t *testing.T) {
	env := newTestEnv(t)

	var session handlers.SessionResponse
	decode(t, env.doAuth(t, http.MethodGet, "/api/session", nil), &session)
	if !session.Authenticated {
		t.Fatal("expected authenticated session")
	}

	w := env.doAuth(t, http.MethodPost, "/api/logout", nil)
	expectStatus(t, w, http.StatusOK)

	decode(t, env.doAuth(t, http.MethodGet, "/api/session", nil), &session)
	if session.Authenticated {
		t.Error("expected session to end after logout")
	}

	w = env.doAuth(t, http.MethodPost, "/api/reload", nil)
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestOperatorRoutes_RequireSession(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/reload"},
		{http.MethodPost, "/api/draw/start"},
		{http.MethodPost, "/api/draw/stop"},
		{http.MethodPost, "/api/reset"},
		{http.MethodPost, "/api/cancel-win"},
		{http.MethodPost, "/api/chat"},
		{http.MethodDelete, "/api/chat"},
		{http.MethodGet, "/api/participants"},
		{http.MethodPost, "/api/prizes"},
		{http.MethodGet, "/api/records"},
		{http.MethodPut, "/api/settings"},
		{http.MethodPost, "/api/reset-journal"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := env.do(t, rt.method, rt.path, nil)
			expectErrorCode(t, w, http.StatusUnauthorized, handlers.ErrCodeUnauthorized)
		})
	}
}

// ==================== Drawing ====================

func TestGetState(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/state", nil)
	expectStatus(t, w, http.StatusOK)

	var snap models.Snapshot
	decode(t, w, &snap)
	if len(snap.Prizes) != 3 {
		t.Errorf("expected 3 prizes, got %d", len(snap.Prizes))
	}
	if len(snap.AvailableParticipants) != 6 {
		t.Errorf("expected 6 available participants, got %d", len(snap.AvailableParticipants))
	}
	if snap.IsDrawing {
		t.Error("expected no draw in progress")
	}
}

func TestDrawRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	w := env.doAuth(t, http.MethodPost, "/api/draw/start", handlers.StartDrawRequest{PrizeID: "prize-2"})
	expectStatus(t, w, http.StatusOK)
	var snap models.Snapshot
	decode(t, w, &snap)
	if !snap.IsDrawing || snap.CurrentPrize == nil || snap.CurrentPrize.ID != "prize-2" {
		t.Fatalf("expected drawing prize-2, got drawing=%v prize=%+v", snap.IsDrawing, snap.CurrentPrize)
	}

	w = env.doAuth(t, http.MethodPost, "/api/draw/stop", nil)
	expectStatus(t, w, http.StatusOK)
	var resp handlers.DrawResponse
	decode(t, w, &resp)
	if resp.Result == nil || len(resp.Result.Winners) != 2 {
		t.Fatalf("expected 2 winners, got %+v", resp.Result)
	}
	if resp.State.IsDrawing {
		t.Error("expected drawing to stop")
	}
	if len(resp.State.WonParticipants) != 2 {
		t.Errorf("expected 2 won participants after reload, got %d", len(resp.State.WonParticipants))
	}

	var history []models.DrawHistoryEntry
	w = env.do(t, http.MethodGet, "/api/history", nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &history)
	if len(history) != 1 || history[0].PrizeID != "prize-2" {
		t.Errorf("expected one journaled draw for prize-2, got %+v", history)
	}
}

func TestStartDraw_FetchesUncachedPrize(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.client.CreatePrize(context.Background(), lotteryapi.Prize{Name: "Late Addition", Level: 3, Count: 1})
	if err != nil {
		t.Fatalf("CreatePrize: %v", err)
	}
	if _, ok := env.store.FindPrize(created.ID); ok {
		t.Fatal("expected new prize absent from the cache")
	}

	w := env.doAuth(t, http.MethodPost, "/api/draw/start", handlers.StartDrawRequest{PrizeID: created.ID})
	expectStatus(t, w, http.StatusOK)
	var snap models.Snapshot
	decode(t, w, &snap)
	if !snap.IsDrawing || snap.CurrentPrize == nil || snap.CurrentPrize.ID != created.ID {
		t.Fatalf("expected drawing %s, got drawing=%v prize=%+v", created.ID, snap.IsDrawing, snap.CurrentPrize)
	}
}

func TestStartDraw_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"missing prize", handlers.StartDrawRequest{}, http.StatusBadRequest, handlers.ErrCodeValidation},
		{"unknown prize", handlers.StartDrawRequest{PrizeID: "prize-9"}, http.StatusNotFound, handlers.ErrCodeNotFound},
		{"empty body", nil, http.StatusBadRequest, handlers.ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.doAuth(t, http.MethodPost, "/api/draw/start", tt.body)
			expectErrorCode(t, w, tt.status, tt.code)
		})
	}
}

func TestStopDraw_NoPrizeSelected(t *testing.T) {
	env := newTestEnv(t)
	w := env.doAuth(t, http.MethodPost, "/api/draw/stop", nil)
	expectErrorCode(t, w, http.StatusConflict, handlers.ErrCodeConflict)
}

func TestStopDraw_RemoteError(t *testing.T) {
	env := newTestEnv(t, lotteryapi.WithDrawError(&lotteryapi.APIError{Status: 200, Code: 400, Message: "奖品已抽完"}))

	env.doAuth(t, http.MethodPost, "/api/draw/start", handlers.StartDrawRequest{PrizeID: "prize-1"})
	w := env.doAuth(t, http.MethodPost, "/api/draw/stop", nil)
	expectErrorCode(t, w, http.StatusBadRequest, handlers.ErrCodeRemote)

	if env.store.IsDrawing() {
		t.Error("expected drawing flag cleared after failed draw")
	}
}

func TestStopDraw_TransportError(t *testing.T) {
	env := newTestEnv(t, lotteryapi.WithDrawError(&lotteryapi.TransportError{Err: errors.New("connection refused")}))

	env.doAuth(t, http.MethodPost, "/api/draw/start", handlers.StartDrawRequest{PrizeID: "prize-1"})
	w := env.doAuth(t, http.MethodPost, "/api/draw/stop", nil)
	expectErrorCode(t, w, http.StatusBadGateway, handlers.ErrCodeServiceUnreachable)
}

func TestResetAndCancelWin(t *testing.T) {
	env := newTestEnv(t)

	env.doAuth(t, http.MethodPost, "/api/draw/start", handlers.StartDrawRequest{PrizeID: "prize-1"})
	env.doAuth(t, http.MethodPost, "/api/draw/stop", nil)
	if len(env.store.WonParticipants()) != 1 {
		t.Fatalf("expected 1 winner, got %d", len(env.store.WonParticipants()))
	}

	w := env.doAuth(t, http.MethodPost, "/api/cancel-win", handlers.CancelWinRequest{ParticipantID: "participant-1"})
	expectStatus(t, w, http.StatusOK)
	if len(env.store.WonParticipants()) != 0 {
		t.Errorf("expected win cancelled, got %d winners", len(env.store.WonParticipants()))
	}

	w = env.doAuth(t, http.MethodPost, "/api/cancel-win", handlers.CancelWinRequest{ParticipantID: "participant-99"})
	expectErrorCode(t, w, http.StatusNotFound, handlers.ErrCodeNotFound)

	w = env.doAuth(t, http.MethodPost, "/api/cancel-win", handlers.CancelWinRequest{})
	expectErrorCode(t, w, http.StatusBadRequest, handlers.ErrCodeValidation)

	w = env.doAuth(t, http.MethodPost, "/api/reset", nil)
	expectStatus(t, w, http.StatusOK)
	if env.client.ResetCalls() != 1 {
		t.Errorf("expected 1 reset call, got %d", env.client.ResetCalls())
	}
	if env.store.CurrentPrize() != nil {
		t.Error("expected current prize cleared after reset")
	}
}

func TestReload_ServiceDown(t *testing.T) {
	env := newTestEnv(t, lotteryapi.WithPrizesError(&lotteryapi.TransportError{Err: errors.New("dial tcp: refused")}))
	w := env.doAuth(t, http.MethodPost, "/api/reload", nil)
	expectErrorCode(t, w, http.StatusBadGateway, handlers.ErrCodeServiceUnreachable)
}

// ==================== Chat ====================

func TestChat(t *testing.T) {
	env := newTestEnv(t)

	w := env.doAuth(t, http.MethodPost, "/api/chat", handlers.ChatRequest{Text: "  开始抽三等奖 "})
	expectStatus(t, w, http.StatusAccepted)
	var resp handlers.ChatResponse
	decode(t, w, &resp)
	if !resp.Connected {
		t.Error("expected connected messenger")
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Content != "开始抽三等奖" {
		t.Fatalf("expected the trimmed user message, got %+v", resp.Messages)
	}
	if len(env.messenger.sent) != 1 {
		t.Errorf("expected 1 command sent, got %d", len(env.messenger.sent))
	}

	w = env.do(t, http.MethodGet, "/api/chat", nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &resp)
	if len(resp.Messages) != 1 {
		t.Errorf("expected 1 chat message, got %d", len(resp.Messages))
	}

	w = env.doAuth(t, http.MethodDelete, "/api/chat", nil)
	expectStatus(t, w, http.StatusNoContent)
	if n := len(env.store.ChatMessages()); n != 0 {
		t.Errorf("expected chat cleared, got %d messages", n)
	}
}

func TestChat_NotConnected(t *testing.T) {
	env := newTestEnv(t)
	env.messenger.connected = false

	w := env.doAuth(t, http.MethodPost, "/api/chat", handlers.ChatRequest{Text: "你好"})
	expectErrorCode(t, w, http.StatusServiceUnavailable, handlers.ErrCodeMessagingUnavailable)

	msgs := env.store.ChatMessages()
	if len(msgs) != 2 || msgs[1].Type != models.ChatTypeAI {
		t.Errorf("expected user message plus an explanation, got %+v", msgs)
	}
}

func TestChat_EmptyText(t *testing.T) {
	env := newTestEnv(t)
	w := env.doAuth(t, http.MethodPost, "/api/chat", handlers.ChatRequest{Text: "   "})
	expectErrorCode(t, w, http.StatusBadRequest, handlers.ErrCodeValidation)
}

// ==================== Journal & Display ====================

func TestHistory_InvalidLimit(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/history?limit=abc", nil)
	expectErrorCode(t, w, http.StatusBadRequest, handlers.ErrCodeBadRequest)
}

func TestDisplayQR(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/display-qr", nil)
	expectStatus(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("expected a PNG body")
	}
}

func TestDisplayPage(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/display", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 without static files, got %d", w.Code)
	}

	env.handlers.Static = fstest.MapFS{
		"display.html": &fstest.MapFile{Data: []byte("<h1>抽奖</h1>")},
		"display.js":   &fstest.MapFile{Data: []byte("connect();")},
	}
	env.router = env.handlers.Router()

	w = env.do(t, http.MethodGet, "/display", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "抽奖") {
		t.Errorf("unexpected display page: %s", w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/static/display.js", nil)
	expectStatus(t, w, http.StatusOK)

	w = env.do(t, http.MethodGet, "/", nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/display" {
		t.Errorf("expected redirect to /display, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestHealth(t *testing.T) {
	t.Run("service up", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, http.MethodGet, "/api/health", nil)
		expectStatus(t, w, http.StatusOK)
		var resp handlers.HealthResponse
		decode(t, w, &resp)
		if resp.Service != "ok" || !resp.Messaging {
			t.Errorf("unexpected health: %+v", resp)
		}
	})

	t.Run("service down", func(t *testing.T) {
		env := newTestEnv(t, lotteryapi.WithHealthError(&lotteryapi.TransportError{Err: errors.New("connection refused")}))
		w := env.do(t, http.MethodGet, "/api/health", nil)
		expectStatus(t, w, http.StatusServiceUnavailable)
		var resp handlers.HealthResponse
		decode(t, w, &resp)
		if resp.Service != "unreachable" || resp.ServiceError != "connection refused" {
			t.Errorf("unexpected health: %+v", resp)
		}
	})
}

// ==================== Admin ====================

func TestParticipantCRUD(t *testing.T) {
	env := newTestEnv(t)

	w := env.doAuth(t, http.MethodPost, "/api/participants", handlers.ParticipantRequest{Name: " 赵敏 ", Department: "销售部"})
	expectStatus(t, w, http.StatusCreated)
	var created lotteryapi.Participant
	decode(t, w, &created)
	if created.ID == "" || created.Name != "赵敏" {
		t.Fatalf("unexpected participant: %+v", created)
	}
	if len(env.store.Participants()) != 7 {
		t.Errorf("expected store reloaded with 7 participants, got %d", len(env.store.Participants()))
	}

	w = env.doAuth(t, http.MethodPut, "/api/participants/"+created.ID, handlers.ParticipantRequest{Name: "赵敏", Department: "市场部"})
	expectStatus(t, w, http.StatusOK)

	w = env.doAuth(t, http.MethodDelete, "/api/participants/"+created.ID, nil)
	expectStatus(t, w, http.StatusNoContent)

	w = env.doAuth(t, http.MethodPost, "/api/participants/delete", handlers.DeleteParticipantsRequest{IDs: []string{"participant-1", "participant-2"}})
	expectStatus(t, w, http.StatusNoContent)

	w = env.doAuth(t, http.MethodGet, "/api/participants", nil)
	expectStatus(t, w, http.StatusOK)
	var list []lotteryapi.Participant
	decode(t, w, &list)
	if len(list) != 4 {
		t.Errorf("expected 4 participants left, got %d", len(list))
	}
}

func TestParticipant_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.doAuth(t, http.MethodPost, "/api/participants", handlers.ParticipantRequest{Name: "  "})
	expectErrorCode(t, w, http.StatusBadRequest, handlers.ErrCodeValidation)

	w = env.doAuth(t, http.MethodPost, "/api/participants/delete", handlers.DeleteParticipantsRequest{})
	expectErrorCode(t, w, http.StatusBadRequest, handlers.ErrCodeValidation)

	w = env.doAuth(t, http.MethodDelete, "/api/participants/participant-42", nil)
	expectErrorCode(t, w, http.StatusNotFound, handlers.ErrCodeNotFound)
}

func importRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/participants/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImportParticipants(t *testing.T) {
	env := newTestEnv(t, lotteryapi.WithImportResult(&lotteryapi.ImportResult{Total: 3, Success: 3}))

	tests := []struct {
		name     string
		filename string
		content  []byte
		status   int
	}{
		{"xlsx", "staff.xlsx", []byte("PK\x03\x04"), http.StatusOK},
		{"wrong extension", "staff.csv", []byte("a,b"), http.StatusBadRequest},
		{"empty file", "staff.xls", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := importRequest(t, tt.filename, tt.content)
			req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: env.token})
			w := env.serve(req)
			expectStatus(t, w, tt.status)
		})
	}
}

func TestImportParticipants_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	w := env.doAuth(t, http.MethodPost, "/api/participants/import", handlers.ParticipantRequest{})
	expectErrorCode(t, w, http.StatusBadRequest, handlers.ErrCodeBadRequest)
}

func TestPrizeCRUD(t *testing.T) {
	env := newTestEnv(t)

	w := env.doAuth(t, http.MethodPost, "/api/prizes", handlers.PrizeRequest{Name: "特等奖", Level: 1, Count: 1})
	expectStatus(t, w, http.StatusCreated)
	var created lotteryapi.Prize
	decode(t, w, &created)

	w = env.doAuth(t, http.MethodPut, "/api/prizes/"+created.ID, handlers.PrizeRequest{Name: "特等奖", Level: 1, Count: 2})
	expectStatus(t, w, http.StatusOK)

	w = env.doAuth(t, http.MethodPut, "/api/prizes/"+created.ID, handlers.PrizeRequest{Name: "特等奖", Level: 0, Count: 2})
	expectErrorCode(t, w, http.StatusBadRequest, handlers.ErrCodeValidation)

	w = env.doAuth(t, http.MethodDelete, "/api/prizes/"+created.ID, nil)
	expectStatus(t, w, http.StatusNoContent)

	w = env.doAuth(t, http.MethodGet, "/api/prizes?status=pending", nil)
	expectStatus(t, w, http.StatusOK)
	var prizes []lotteryapi.Prize
	decode(t, w, &prizes)
	if len(prizes) != 3 {
		t.Errorf("expected 3 pending prizes, got %d", len(prizes))
	}
}

func TestNextPrize(t *testing.T) {
	env := newTestEnv(t)

	w := env.doAuth(t, http.MethodGet, "/api/prizes/next", nil)
	expectStatus(t, w, http.StatusOK)
	var next lotteryapi.Prize
	decode(t, w, &next)
	if next.ID != "prize-3" {
		t.Errorf("expected prize-3 next, got %s", next.ID)
	}

	empty := newTestEnv(t, lotteryapi.WithPrizes([]lotteryapi.Prize{}))
	w = empty.doAuth(t, http.MethodGet, "/api/prizes/next", nil)
	expectErrorCode(t, w, http.StatusNotFound, handlers.ErrCodeNotFound)
}

func TestStatsRecordsAndSystemInfo(t *testing.T) {
	env := newTestEnv(t)
	env.doAuth(t, http.MethodPost, "/api/draw/start", handlers.StartDrawRequest{PrizeID: "prize-3"})
	env.doAuth(t, http.MethodPost, "/api/draw/stop", nil)

	w := env.doAuth(t, http.MethodGet, "/api/stats", nil)
	expectStatus(t, w, http.StatusOK)
	var stats services.Statistics
	decode(t, w, &stats)
	if stats.Participants == nil || stats.Participants.Won != 3 {
		t.Errorf("expected 3 won participants in stats, got %+v", stats.Participants)
	}

	w = env.doAuth(t, http.MethodGet, "/api/records?prize_id=prize-3", nil)
	expectStatus(t, w, http.StatusOK)
	var records []lotteryapi.LotteryRecord
	decode(t, w, &records)
	if len(records) != 3 {
		t.Errorf("expected 3 records for prize-3, got %d", len(records))
	}

	w = env.doAuth(t, http.MethodGet, "/api/records?all=maybe", nil)
	expectErrorCode(t, w, http.StatusBadRequest, handlers.ErrCodeBadRequest)

	w = env.doAuth(t, http.MethodGet, "/api/system-info", nil)
	expectStatus(t, w, http.StatusOK)
	var info lotteryapi.SystemInfo
	decode(t, w, &info)
	if info.Version != "mock" {
		t.Errorf("expected mock version, got %q", info.Version)
	}
}

// ==================== Settings ====================

func TestSettings(t *testing.T) {
	env := newTestEnv(t)

	url := "http://192.168.1.20:3000/"
	w := env.doAuth(t, http.MethodPut, "/api/settings", handlers.SettingsUpdateRequest{BaseURL: &url})
	expectStatus(t, w, http.StatusOK)
	var resp handlers.SettingsResponse
	decode(t, w, &resp)
	if resp.BaseURL != "http://192.168.1.20:3000" {
		t.Errorf("expected normalized base URL, got %q", resp.BaseURL)
	}
	if resp.ServiceURL != env.client.BaseURL() {
		t.Errorf("expected service URL %q, got %q", env.client.BaseURL(), resp.ServiceURL)
	}
}

func TestResetJournal(t *testing.T) {
	env := newTestEnv(t)

	w := env.doAuth(t, http.MethodPost, "/api/reset-journal", handlers.JournalResetRequest{Tables: []string{"draw_results", "chat_messages"}})
	expectStatus(t, w, http.StatusOK)
	var result services.ResetTablesResult
	decode(t, w, &result)
	if len(result.Tables) != 2 {
		t.Errorf("expected 2 tables cleared, got %v", result.Tables)
	}

	w = env.doAuth(t, http.MethodPost, "/api/reset-journal", handlers.JournalResetRequest{Tables: []string{"participants"}})
	expectErrorCode(t, w, http.StatusBadRequest, handlers.ErrCodeValidation)
}

func TestRedirectSlashes(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/state/", nil)
	if w.Code != http.StatusMovedPermanently {
		t.Errorf("expected redirect for trailing slash, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.HasSuffix(loc, "/api/state") {
		t.Errorf("unexpected redirect location %q", loc)
	}
}
