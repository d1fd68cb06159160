// Package lotteryapi provides a client for the lottery service REST API.
package lotteryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/abrezinsky/lotterydesk/internal/logger"
)

// CodeOK is the envelope code for a successful call
const CodeOK = 200

// DefaultTimeout is the per-request timeout of the default HTTP client
const DefaultTimeout = 30 * time.Second

// Envelope is the {code, message, data} wrapper every response uses
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is returned when the service answers with a non-200 envelope code
// or a non-2xx HTTP status
type APIError struct {
	Status  int    // HTTP status of the response
	Code    int    // envelope code, 0 when the body had no envelope
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// TransportError is returned when the service could not be reached or the
// response could not be read
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MessageOf extracts the human-readable part of an error returned by this package
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		if tErr.Err != nil && tErr.Err.Error() != "" {
			return tErr.Err.Error()
		}
		return "network error"
	}
	return err.Error()
}

// Client defines the operations of the lottery service
type Client interface {
	// ListParticipants retrieves all participants
	ListParticipants(ctx context.Context) ([]Participant, error)
	// ListParticipantsByStatus retrieves participants with the given status
	ListParticipantsByStatus(ctx context.Context, status string) ([]Participant, error)
	// GetParticipant retrieves a single participant
	GetParticipant(ctx context.Context, id string) (*Participant, error)
	// AddParticipant creates a participant
	AddParticipant(ctx context.Context, p Participant) (*Participant, error)
	// UpdateParticipant replaces a participant's editable fields
	UpdateParticipant(ctx context.Context, id string, p Participant) (*Participant, error)
	// DeleteParticipant removes a participant
	DeleteParticipant(ctx context.Context, id string) error
	// DeleteParticipants removes several participants in one call
	DeleteParticipants(ctx context.Context, ids []string) error
	// ImportParticipants uploads a spreadsheet of participants
	ImportParticipants(ctx context.Context, filename string, r io.Reader) (*ImportResult, error)
	// ParticipantStatistics returns participant counts
	ParticipantStatistics(ctx context.Context) (*ParticipantStatistics, error)

	// ListPrizes retrieves all prizes
	ListPrizes(ctx context.Context) ([]Prize, error)
	// ListPrizesByStatus retrieves prizes with the given status
	ListPrizesByStatus(ctx context.Context, status string) ([]Prize, error)
	// GetPrize retrieves a single prize
	GetPrize(ctx context.Context, id string) (*Prize, error)
	// CreatePrize creates a prize
	CreatePrize(ctx context.Context, p Prize) (*Prize, error)
	// UpdatePrize replaces a prize's editable fields
	UpdatePrize(ctx context.Context, id string, p Prize) (*Prize, error)
	// DeletePrize removes a prize
	DeletePrize(ctx context.Context, id string) error
	// NextPendingPrize returns the next prize waiting to be drawn
	NextPendingPrize(ctx context.Context) (*Prize, error)
	// PrizeStatistics returns prize progress counts
	PrizeStatistics(ctx context.Context) (*PrizeStatistics, error)

	// Draw runs a draw for a prize
	Draw(ctx context.Context, prizeID, operator string) (*DrawResult, error)
	// CancelWin revokes a participant's win
	CancelWin(ctx context.Context, participantID, operator string) error
	// Reset returns every participant and prize to its initial state
	Reset(ctx context.Context) error

	// ListRecords returns the full draw audit log
	ListRecords(ctx context.Context) ([]LotteryRecord, error)
	// ListValidRecords returns non-cancelled records, newest first
	ListValidRecords(ctx context.Context) ([]LotteryRecord, error)
	// ListRecordsByPrize returns non-cancelled records for a prize
	ListRecordsByPrize(ctx context.Context, prizeID string) ([]LotteryRecord, error)
	// ListRecordsByParticipant returns non-cancelled records for a participant
	ListRecordsByParticipant(ctx context.Context, participantID string) ([]LotteryRecord, error)

	// Health checks that the service is up
	Health(ctx context.Context) error
	// SystemInfo returns version and summary statistics
	SystemInfo(ctx context.Context) (*SystemInfo, error)
	// ParseCommand asks the service to interpret a transcript without executing it
	ParseCommand(ctx context.Context, transcript string) (*CommandResult, error)

	// BaseURL returns the configured service base URL
	BaseURL() string
	// SetBaseURL updates the service base URL
	SetBaseURL(url string)
}

// HTTPClient is a real HTTP client for the lottery service
type HTTPClient struct {
	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

// NewHTTPClient creates a client with the default 30s timeout
func NewHTTPClient(baseURL string, log logger.Logger) *HTTPClient {
	return NewHTTPClientWithHTTPClient(baseURL, &http.Client{Timeout: DefaultTimeout}, log)
}

// NewHTTPClientWithHTTPClient creates a client with a custom http.Client
func NewHTTPClientWithHTTPClient(baseURL string, httpClient *http.Client, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        log,
	}
}

// BaseURL returns the configured service base URL
func (c *HTTPClient) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL updates the service base URL
func (c *HTTPClient) SetBaseURL(url string) {
	c.mu.Lock()
	c.baseURL = url
	c.mu.Unlock()
}

func (c *HTTPClient) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL(), "/") + "/api" + path
}

// doRequest executes a request and unwraps the response envelope into out.
// A nil out discards the data field.
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	reqURL := c.endpoint(path)

	c.log.Debug("Lottery API request", "method", method, "url", reqURL)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("Lottery API request failed", "method", method, "url", reqURL, "error", err)
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.log.Debug("Lottery API response", "status", resp.StatusCode, "body", string(raw))

	var env Envelope
	envErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if envErr == nil && env.Message != "" {
			apiErr.Code = env.Code
			apiErr.Message = env.Message
		}
		c.log.Error("Lottery API error response", "status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}

	if envErr != nil {
		c.log.Error("Lottery API response is not an envelope", "status", resp.StatusCode, "error", envErr)
		return &APIError{Status: resp.StatusCode, Message: "request failed"}
	}

	if env.Code != CodeOK {
		msg := env.Message
		if msg == "" {
			msg = "request failed"
		}
		c.log.Error("Lottery API business error", "code", env.Code, "message", msg)
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: msg}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, "", out)
}

// sendJSON encodes payload (if any) as the request body
func (c *HTTPClient) sendJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	if payload == nil {
		return c.doRequest(ctx, method, path, nil, "", out)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.doRequest(ctx, method, path, bytes.NewReader(body), "application/json", out)
}

func operatorOrDefault(operator string) string {
	if strings.TrimSpace(operator) == "" {
		return DefaultOperator
	}
	return operator
}

// ==================== Participants ====================

// ListParticipants retrieves all participants
func (c *HTTPClient) ListParticipants(ctx context.Context) ([]Participant, error) {
	var participants []Participant
	if err := c.get(ctx, "/participants", &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

// ListParticipantsByStatus retrieves participants with the given status
func (c *HTTPClient) ListParticipantsByStatus(ctx context.Context, status string) ([]Participant, error) {
	var participants []Participant
	if err := c.get(ctx, "/participants/status/"+url.PathEscape(status), &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

// GetParticipant retrieves a single participant
func (c *HTTPClient) GetParticipant(ctx context.Context, id string) (*Participant, error) {
	var p Participant
	if err := c.get(ctx, "/participants/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddParticipant creates a participant
func (c *HTTPClient) AddParticipant(ctx context.Context, p Participant) (*Participant, error) {
	var created Participant
	if err := c.sendJSON(ctx, http.MethodPost, "/participants", p, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateParticipant replaces a participant's editable fields
func (c *HTTPClient) UpdateParticipant(ctx context.Context, id string, p Participant) (*Participant, error) {
	var updated Participant
	if err := c.sendJSON(ctx, http.MethodPut, "/participants/"+url.PathEscape(id), p, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteParticipant removes a participant
func (c *HTTPClient) DeleteParticipant(ctx context.Context, id string) error {
	return c.sendJSON(ctx, http.MethodDelete, "/participants/"+url.PathEscape(id), nil, nil)
}

// DeleteParticipants removes several participants in one call
func (c *HTTPClient) DeleteParticipants(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return c.sendJSON(ctx, http.MethodDelete, "/participants/batch", ids, nil)
}

// ImportParticipants uploads a spreadsheet as the multipart field "file"
func (c *HTTPClient) ImportParticipants(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	var result ImportResult
	if err := c.doRequest(ctx, http.MethodPost, "/participants/import", &buf, mw.FormDataContentType(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ParticipantStatistics returns participant counts
func (c *HTTPClient) ParticipantStatistics(ctx context.Context) (*ParticipantStatistics, error) {
	var stats ParticipantStatistics
	if err := c.get(ctx, "/participants/statistics", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ==================== Prizes ====================

// ListPrizes retrieves all prizes
func (c *HTTPClient) ListPrizes(ctx context.Context) ([]Prize, error) {
	var prizes []Prize
	if err := c.get(ctx, "/prizes", &prizes); err != nil {
		return nil, err
	}
	return prizes, nil
}

// ListPrizesByStatus retrieves prizes with the given status
func (c *HTTPClient) ListPrizesByStatus(ctx context.Context, status string) ([]Prize, error) {
	var prizes []Prize
	if err := c.get(ctx, "/prizes/status/"+url.PathEscape(status), &prizes); err != nil {
		return nil, err
	}
	return prizes, nil
}

// GetPrize retrieves a single prize
func (c *HTTPClient) GetPrize(ctx context.Context, id string) (*Prize, error) {
	var p Prize
	if err := c.get(ctx, "/prizes/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePrize creates a prize
func (c *HTTPClient) CreatePrize(ctx context.Context, p Prize) (*Prize, error) {
	var created Prize
	if err := c.sendJSON(ctx, http.MethodPost, "/prizes", p, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdatePrize replaces a prize's editable fields
func (c *HTTPClient) UpdatePrize(ctx context.Context, id string, p Prize) (*Prize, error) {
	var updated Prize
	if err := c.sendJSON(ctx, http.MethodPut, "/prizes/"+url.PathEscape(id), p, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeletePrize removes a prize
func (c *HTTPClient) DeletePrize(ctx context.Context, id string) error {
	return c.sendJSON(ctx, http.MethodDelete, "/prizes/"+url.PathEscape(id), nil, nil)
}

// NextPendingPrize returns the next prize waiting to be drawn, or nil when none is left
func (c *HTTPClient) NextPendingPrize(ctx context.Context) (*Prize, error) {
	var p *Prize
	if err := c.get(ctx, "/prizes/next-pending", &p); err != nil {
		return nil, err
	}
	return p, nil
}

// PrizeStatistics returns prize progress counts
func (c *HTTPClient) PrizeStatistics(ctx context.Context) (*PrizeStatistics, error) {
	var stats PrizeStatistics
	if err := c.get(ctx, "/prizes/statistics", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ==================== Lottery ====================

type drawRequest struct {
	PrizeID  string `json:"prizeId"`
	Operator string `json:"operator"`
}

type cancelWinRequest struct {
	ParticipantID string `json:"participantId"`
	Operator      string `json:"operator"`
}

// Draw runs a draw for a prize
func (c *HTTPClient) Draw(ctx context.Context, prizeID, operator string) (*DrawResult, error) {
	var result DrawResult
	req := drawRequest{PrizeID: prizeID, Operator: operatorOrDefault(operator)}
	if err := c.sendJSON(ctx, http.MethodPost, "/lottery/draw", req, &result); err != nil {
		return nil, err
	}
	c.log.Info("Draw completed", "prize_id", prizeID, "winners", len(result.Winners))
	return &result, nil
}

// CancelWin revokes a participant's win
func (c *HTTPClient) CancelWin(ctx context.Context, participantID, operator string) error {
	req := cancelWinRequest{ParticipantID: participantID, Operator: operatorOrDefault(operator)}
	return c.sendJSON(ctx, http.MethodPost, "/lottery/cancel-win", req, nil)
}

// Reset returns every participant and prize to its initial state
func (c *HTTPClient) Reset(ctx context.Context) error {
	return c.sendJSON(ctx, http.MethodPost, "/lottery/reset", nil, nil)
}

// ==================== Records ====================

func (c *HTTPClient) listRecords(ctx context.Context, path string) ([]LotteryRecord, error) {
	var records []LotteryRecord
	if err := c.get(ctx, path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ListRecords returns the full draw audit log
func (c *HTTPClient) ListRecords(ctx context.Context) ([]LotteryRecord, error) {
	return c.listRecords(ctx, "/lottery-records")
}

// ListValidRecords returns non-cancelled records, newest first
func (c *HTTPClient) ListValidRecords(ctx context.Context) ([]LotteryRecord, error) {
	return c.listRecords(ctx, "/lottery-records/valid")
}

// ListRecordsByPrize returns non-cancelled records for a prize
func (c *HTTPClient) ListRecordsByPrize(ctx context.Context, prizeID string) ([]LotteryRecord, error) {
	return c.listRecords(ctx, "/lottery-records/prize/"+url.PathEscape(prizeID))
}

// ListRecordsByParticipant returns non-cancelled records for a participant
func (c *HTTPClient) ListRecordsByParticipant(ctx context.Context, participantID string) ([]LotteryRecord, error) {
	return c.listRecords(ctx, "/lottery-records/participant/"+url.PathEscape(participantID))
}

// ==================== System ====================

// Health checks that the service is up
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.get(ctx, "/system/health", nil)
}

// SystemInfo returns version and summary statistics
func (c *HTTPClient) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if err := c.get(ctx, "/system/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ParseCommand asks the service to interpret a transcript without executing it
func (c *HTTPClient) ParseCommand(ctx context.Context, transcript string) (*CommandResult, error) {
	var result CommandResult
	req := map[string]string{"transcript": transcript}
	if err := c.sendJSON(ctx, http.MethodPost, "/ai-command/parse", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
