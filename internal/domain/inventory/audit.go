package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
)

// SubjectKind names the variant of an AuditSubject
type SubjectKind string

const (
	SubjectKindBatch       SubjectKind = "batch"
	SubjectKindOpname      SubjectKind = "opname"
	SubjectKindDestruction SubjectKind = "destruction"
)

// AuditSubject is a closed variant over the records an audit entry can be
// about. The zero value is not a valid subject.
type AuditSubject struct {
	kind SubjectKind
	id   uuid.UUID
}

// BatchSubject refers to a batch
func BatchSubject(id uuid.UUID) AuditSubject {
	return AuditSubject{kind: SubjectKindBatch, id: id}
}

// OpnameSubject refers to a stock opname
func OpnameSubject(id uuid.UUID) AuditSubject {
	return AuditSubject{kind: SubjectKindOpname, id: id}
}

// DestructionSubject refers to a destruction
func DestructionSubject(id uuid.UUID) AuditSubject {
	return AuditSubject{kind: SubjectKindDestruction, id: id}
}

// RestoreAuditSubject rebuilds a subject from trusted persisted values
func RestoreAuditSubject(kind SubjectKind, id uuid.UUID) AuditSubject {
	return AuditSubject{kind: kind, id: id}
}

// ParseAuditSubject builds a subject from its persisted or URL form
func ParseAuditSubject(kind, id string) (AuditSubject, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return AuditSubject{}, shared.NewValidationError("invalid subject id %q", id)
	}
	switch SubjectKind(strings.ToLower(kind)) {
	case SubjectKindBatch:
		return BatchSubject(parsed), nil
	case SubjectKindOpname:
		return OpnameSubject(parsed), nil
	case SubjectKindDestruction:
		return DestructionSubject(parsed), nil
	}
	return AuditSubject{}, shared.NewValidationError("unknown subject kind %q", kind)
}

// Kind returns the variant tag
func (s AuditSubject) Kind() SubjectKind { return s.kind }

// ID returns the referenced record id
func (s AuditSubject) ID() uuid.UUID { return s.id }

// IsZero reports whether the subject is unset
func (s AuditSubject) IsZero() bool { return s.kind == "" }

func (s AuditSubject) String() string {
	return fmt.Sprintf("%s:%s", s.kind, s.id)
}

// AuditAction describes what happened to the subject
type AuditAction string

const (
	AuditActionReceived   AuditAction = "received"
	AuditActionAdjusted   AuditAction = "adjusted"
	AuditActionDispensed  AuditAction = "dispensed"
	AuditActionReconciled AuditAction = "reconciled"
	AuditActionDestroyed  AuditAction = "destroyed"
	AuditActionRecalled   AuditAction = "recalled"
	AuditActionExpired    AuditAction = "expired"
	AuditActionTransition AuditAction = "transition"
)

// AuditEntry is an append-only record of a quantity or status change
type AuditEntry struct {
	ID             uuid.UUID
	Subject        AuditSubject
	Source         *AuditSubject // workflow document that caused the change
	Action         AuditAction
	ActorID        *uuid.UUID
	Delta          int64
	QuantityBefore int64
	QuantityAfter  int64
	Reason         string
	OccurredAt     time.Time
}

// NewQuantityAudit records a quantity change of a batch
func NewQuantityAudit(batchID uuid.UUID, action AuditAction, before, after int64, reason string, actor *uuid.UUID) *AuditEntry {
	return &AuditEntry{
		ID:             uuid.New(),
		Subject:        BatchSubject(batchID),
		Action:         action,
		ActorID:        actor,
		Delta:          after - before,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reason:         reason,
		OccurredAt:     time.Now().UTC(),
	}
}

// NewTransitionAudit records a workflow status change of a document
func NewTransitionAudit(subject AuditSubject, from, to string, actor *uuid.UUID) *AuditEntry {
	return &AuditEntry{
		ID:         uuid.New(),
		Subject:    subject,
		Action:     AuditActionTransition,
		ActorID:    actor,
		Reason:     fmt.Sprintf("%s -> %s", from, to),
		OccurredAt: time.Now().UTC(),
	}
}

// WithSource links the entry to the workflow document that caused it
func (e *AuditEntry) WithSource(source AuditSubject) *AuditEntry {
	e.Source = &source
	return e
}
