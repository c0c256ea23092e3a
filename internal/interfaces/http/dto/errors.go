package dto

import (
	"net/http"

	"github.com/pharmaledger/backend/internal/domain/shared"
)

// Ledger error codes are passed through to clients unchanged
const (
	ErrCodeValidation          = shared.CodeValidation
	ErrCodeInsufficientStock   = shared.CodeInsufficientStock
	ErrCodeInvalidTransition   = shared.CodeInvalidTransition
	ErrCodeStaleReference      = shared.CodeStaleReference
	ErrCodeNotFound            = shared.CodeNotFound
	ErrCodeAlreadyExists       = shared.CodeAlreadyExists
	ErrCodeConcurrencyConflict = shared.CodeConcurrencyConflict
	ErrCodeStorageUnavailable  = shared.CodeStorageUnavailable
	ErrCodeUploadURLFailed     = shared.CodeUploadURLFailed
	ErrCodeStorageCheckFailed  = shared.CodeStorageCheckFailed
	ErrCodeUploadNotFound      = shared.CodeUploadNotFound
)

// Transport error codes
// Format: ERR_<DESCRIPTION>
const (
	ErrCodeInternal           = "ERR_INTERNAL"
	ErrCodeBadRequest         = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON        = "ERR_INVALID_JSON"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired       = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid       = "ERR_TOKEN_INVALID"
	ErrCodeForbidden          = "ERR_FORBIDDEN"
	ErrCodeRequestTooLarge    = "ERR_REQUEST_TOO_LARGE"
	ErrCodeTimeout            = "ERR_TIMEOUT"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
	ErrCodeSweepInProgress    = "ERR_SWEEP_IN_PROGRESS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeInsufficientStock:   http.StatusUnprocessableEntity,
	ErrCodeInvalidTransition:   http.StatusUnprocessableEntity,
	ErrCodeStaleReference:      http.StatusConflict,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeStorageUnavailable:  http.StatusServiceUnavailable,
	ErrCodeUploadURLFailed:     http.StatusBadGateway,
	ErrCodeStorageCheckFailed:  http.StatusBadGateway,
	ErrCodeUploadNotFound:      http.StatusUnprocessableEntity,

	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeInvalidJSON:        http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeTokenExpired:       http.StatusUnauthorized,
	ErrCodeTokenInvalid:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeRequestTooLarge:    http.StatusRequestEntityTooLarge,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeSweepInProgress:    http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
