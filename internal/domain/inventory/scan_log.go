package inventory

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ScanMethod is how an identifier was captured
type ScanMethod string

const (
	ScanMethodCamera  ScanMethod = "camera"
	ScanMethodScanner ScanMethod = "scanner"
	ScanMethodManual  ScanMethod = "manual"
)

// IsValid checks if the method is a known ScanMethod
func (m ScanMethod) IsValid() bool {
	switch m {
	case ScanMethodCamera, ScanMethodScanner, ScanMethodManual:
		return true
	}
	return false
}

// ScanResult is the outcome of resolving a scanned identifier
type ScanResult string

const (
	ScanResultSuccess  ScanResult = "success"
	ScanResultNotFound ScanResult = "not_found"
	ScanResultExpired  ScanResult = "expired"
	ScanResultError    ScanResult = "error"
)

// IsValid checks if the scan result is known
func (r ScanResult) IsValid() bool {
	switch r {
	case ScanResultSuccess, ScanResultNotFound, ScanResultExpired, ScanResultError:
		return true
	}
	return false
}

// ScanLog is an append-only record of one identifier resolution
type ScanLog struct {
	ID           uuid.UUID
	Code         string
	Method       ScanMethod
	Result       ScanResult
	ErrorMessage string
	BatchID      *uuid.UUID
	ActorID      *uuid.UUID
	Payload      json.RawMessage
	IPAddress    string
	UserAgent    string
	ScannedAt    time.Time
}

// ScanContext describes who scanned what and from where
type ScanContext struct {
	Code      string
	Method    ScanMethod
	ActorID   *uuid.UUID
	IPAddress string
	UserAgent string
}

// NewScanLog creates a scan log entry for a resolution outcome
func NewScanLog(sc ScanContext, result ScanResult, batchID *uuid.UUID, errMsg string, payload json.RawMessage) *ScanLog {
	method := sc.Method
	if !method.IsValid() {
		method = ScanMethodManual
	}
	return &ScanLog{
		ID:           uuid.New(),
		Code:         sc.Code,
		Method:       method,
		Result:       result,
		ErrorMessage: errMsg,
		BatchID:      batchID,
		ActorID:      sc.ActorID,
		Payload:      payload,
		IPAddress:    sc.IPAddress,
		UserAgent:    sc.UserAgent,
		ScannedAt:    time.Now().UTC(),
	}
}
