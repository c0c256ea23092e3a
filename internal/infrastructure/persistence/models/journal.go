package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
)

// ScanLogModel is the persistence model for an append-only scan attempt.
type ScanLogModel struct {
	ID           uuid.UUID            `gorm:"type:uuid;primary_key"`
	Code         string               `gorm:"type:varchar(100);not null;index"`
	Method       inventory.ScanMethod `gorm:"type:varchar(20);not null"`
	Result       inventory.ScanResult `gorm:"type:varchar(20);not null;index"`
	ErrorMessage string               `gorm:"type:text"`
	BatchID      *uuid.UUID           `gorm:"type:uuid;index"`
	ActorID      *uuid.UUID           `gorm:"type:uuid"`
	Payload      []byte               `gorm:"type:jsonb"`
	IPAddress    string               `gorm:"type:varchar(45)"`
	UserAgent    string               `gorm:"type:varchar(500)"`
	ScannedAt    time.Time            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ScanLogModel) TableName() string {
	return "scan_logs"
}

// ToDomain converts the persistence model to a domain ScanLog.
func (m *ScanLogModel) ToDomain() *inventory.ScanLog {
	log := &inventory.ScanLog{
		ID:           m.ID,
		Code:         m.Code,
		Method:       m.Method,
		Result:       m.Result,
		ErrorMessage: m.ErrorMessage,
		BatchID:      m.BatchID,
		ActorID:      m.ActorID,
		IPAddress:    m.IPAddress,
		UserAgent:    m.UserAgent,
		ScannedAt:    m.ScannedAt,
	}
	if len(m.Payload) > 0 {
		log.Payload = json.RawMessage(m.Payload)
	}
	return log
}

// ScanLogModelFromDomain creates a new persistence model from a domain ScanLog.
func ScanLogModelFromDomain(l *inventory.ScanLog) *ScanLogModel {
	m := &ScanLogModel{
		ID:           l.ID,
		Code:         l.Code,
		Method:       l.Method,
		Result:       l.Result,
		ErrorMessage: l.ErrorMessage,
		BatchID:      l.BatchID,
		ActorID:      l.ActorID,
		IPAddress:    l.IPAddress,
		UserAgent:    l.UserAgent,
		ScannedAt:    l.ScannedAt,
	}
	if len(l.Payload) > 0 {
		m.Payload = []byte(l.Payload)
	}
	return m
}

// AuditEntryModel is the persistence model for an append-only ledger audit entry.
// The subject variant is flattened into a kind column and an id column.
type AuditEntryModel struct {
	ID             uuid.UUID             `gorm:"type:uuid;primary_key"`
	SubjectKind    inventory.SubjectKind `gorm:"type:varchar(20);not null;index:idx_audit_subject,priority:1"`
	SubjectID      uuid.UUID             `gorm:"type:uuid;not null;index:idx_audit_subject,priority:2"`
	SourceKind     *string               `gorm:"type:varchar(20)"`
	SourceID       *uuid.UUID            `gorm:"type:uuid"`
	Action         inventory.AuditAction `gorm:"type:varchar(20);not null"`
	ActorID        *uuid.UUID            `gorm:"type:uuid"`
	Delta          int64                 `gorm:"not null;default:0"`
	QuantityBefore int64                 `gorm:"not null;default:0"`
	QuantityAfter  int64                 `gorm:"not null;default:0"`
	Reason         string                `gorm:"type:text"`
	OccurredAt     time.Time             `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

// ToDomain converts the persistence model to a domain AuditEntry.
func (m *AuditEntryModel) ToDomain() *inventory.AuditEntry {
	entry := &inventory.AuditEntry{
		ID:             m.ID,
		Subject:        inventory.RestoreAuditSubject(m.SubjectKind, m.SubjectID),
		Action:         m.Action,
		ActorID:        m.ActorID,
		Delta:          m.Delta,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		Reason:         m.Reason,
		OccurredAt:     m.OccurredAt,
	}
	if m.SourceKind != nil && m.SourceID != nil {
		source := inventory.RestoreAuditSubject(inventory.SubjectKind(*m.SourceKind), *m.SourceID)
		entry.Source = &source
	}
	return entry
}

// AuditEntryModelFromDomain creates a new persistence model from a domain AuditEntry.
func AuditEntryModelFromDomain(e *inventory.AuditEntry) *AuditEntryModel {
	m := &AuditEntryModel{
		ID:             e.ID,
		SubjectKind:    e.Subject.Kind(),
		SubjectID:      e.Subject.ID(),
		Action:         e.Action,
		ActorID:        e.ActorID,
		Delta:          e.Delta,
		QuantityBefore: e.QuantityBefore,
		QuantityAfter:  e.QuantityAfter,
		Reason:         e.Reason,
		OccurredAt:     e.OccurredAt,
	}
	if e.Source != nil && !e.Source.IsZero() {
		kind := string(e.Source.Kind())
		id := e.Source.ID()
		m.SourceKind = &kind
		m.SourceID = &id
	}
	return m
}
