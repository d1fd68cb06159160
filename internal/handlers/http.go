package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/lotterydesk/internal/errors"
	"github.com/abrezinsky/lotterydesk/internal/repository"
	"github.com/abrezinsky/lotterydesk/internal/services"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryws"
)

// Error codes for standardized API error responses
const (
	ErrCodeBadRequest           = "BAD_REQUEST"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeRemote               = "REMOTE_ERROR"
	ErrCodeServiceUnreachable   = "SERVICE_UNREACHABLE"
	ErrCodeMessagingUnavailable = "MESSAGING_UNAVAILABLE"
	ErrCodeInternalServer       = "INTERNAL_SERVER_ERROR"
)

// APIError represents an error with an HTTP status code and error code
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Common errors
var (
	ErrBadRequest     = &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: "Bad request"}
	ErrUnauthorized   = &APIError{Status: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: "Unauthorized"}
	ErrNotFound       = &APIError{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: "Not found"}
	ErrInternalServer = &APIError{Status: http.StatusInternalServerError, Code: ErrCodeInternalServer, Message: "Internal server error"}
)

// NewAPIError creates a new API error with custom message and code
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// BadRequest creates a 400 error with custom message
func BadRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message}
}

// Unauthorized creates a 401 error with custom message
func Unauthorized(message string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: message}
}

// NotFound creates a 404 error with custom message
func NotFound(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: message}
}

// Conflict creates a 409 error with custom message
func Conflict(message string) *APIError {
	return &APIError{Status: http.StatusConflict, Code: ErrCodeConflict, Message: message}
}

// InternalError creates a 500 error that hides err from the client
func InternalError(err error) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Code: ErrCodeInternalServer, Message: "Internal server error"}
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondOK writes a 200 OK JSON response
func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, data)
}

// respondCreated writes a 201 Created JSON response
func respondCreated(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusCreated, data)
}

// respondSuccess writes a 200 OK with a message
func respondSuccess(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// respondDeleted writes a 204 No Content response
func respondDeleted(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// respondError converts err and writes it; server-side failures are logged
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := ToAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError && h.log != nil {
		h.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", apiErr.Status, "error", err)
	}
	respondJSON(w, apiErr.Status, apiErr)
}

// decodeJSON decodes JSON from request body into the target
func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if err == io.EOF {
			return BadRequest("Request body is empty")
		}
		return BadRequest("Invalid JSON: " + err.Error())
	}
	return nil
}

// pathParam extracts a required URL parameter
func pathParam(r *http.Request, name string) (string, error) {
	param := strings.TrimSpace(chi.URLParam(r, name))
	if param == "" {
		return "", BadRequest("Missing " + name + " parameter")
	}
	return param, nil
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, BadRequest("Invalid " + name + " parameter")
	}
	return n, nil
}

// ToAPIError converts service, client and messaging errors to API errors
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	if stderrors.Is(err, lotteryws.ErrNotConnected) {
		return &APIError{Status: http.StatusServiceUnavailable, Code: ErrCodeMessagingUnavailable, Message: "voice command channel is not connected"}
	}

	var transportErr *lotteryapi.TransportError
	if stderrors.As(err, &transportErr) {
		return &APIError{Status: http.StatusBadGateway, Code: ErrCodeServiceUnreachable, Message: lotteryapi.MessageOf(err)}
	}

	var remoteErr *lotteryapi.APIError
	if stderrors.As(err, &remoteErr) {
		if remoteErr.Status == http.StatusNotFound || remoteErr.Code == http.StatusNotFound {
			return NotFound(remoteErr.Message)
		}
		return &APIError{Status: http.StatusBadRequest, Code: ErrCodeRemote, Message: remoteErr.Message}
	}

	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		switch appErr.Kind {
		case errors.ErrNotFound:
			return NotFound(appErr.Message)
		case errors.ErrValidation, errors.ErrInvalidInput:
			return &APIError{Status: http.StatusBadRequest, Code: ErrCodeValidation, Message: appErr.Message}
		case errors.ErrConflict:
			return Conflict(appErr.Message)
		case errors.ErrUnavailable:
			return &APIError{Status: http.StatusServiceUnavailable, Code: ErrCodeServiceUnreachable, Message: appErr.Message}
		default:
			return InternalError(err)
		}
	}

	var svcErr *services.ServiceError
	if stderrors.As(err, &svcErr) {
		return &APIError{Status: http.StatusBadRequest, Code: ErrCodeValidation, Message: svcErr.Message}
	}
	var tableErr *services.InvalidTableError
	if stderrors.As(err, &tableErr) {
		return &APIError{Status: http.StatusBadRequest, Code: ErrCodeValidation, Message: tableErr.Error()}
	}

	if stderrors.Is(err, repository.ErrNotFound) {
		return NotFound("Not found")
	}

	return InternalError(err)
}
