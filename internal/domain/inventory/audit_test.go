package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuditSubject(t *testing.T) {
	id := uuid.New()

	t.Run("parses each variant", func(t *testing.T) {
		for _, kind := range []SubjectKind{SubjectKindBatch, SubjectKindOpname, SubjectKindDestruction} {
			s, err := ParseAuditSubject(string(kind), id.String())
			require.NoError(t, err)
			assert.Equal(t, kind, s.Kind())
			assert.Equal(t, id, s.ID())
		}
	})

	t.Run("unknown kind is a validation error", func(t *testing.T) {
		_, err := ParseAuditSubject("medicine", id.String())
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("bad id is a validation error", func(t *testing.T) {
		_, err := ParseAuditSubject("batch", "nope")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestNewQuantityAudit(t *testing.T) {
	batchID := uuid.New()
	opnameID := uuid.New()

	e := NewQuantityAudit(batchID, AuditActionReconciled, 10, 7, "opname", nil).WithSource(OpnameSubject(opnameID))

	assert.Equal(t, BatchSubject(batchID), e.Subject)
	assert.Equal(t, int64(-3), e.Delta)
	require.NotNil(t, e.Source)
	assert.Equal(t, SubjectKindOpname, e.Source.Kind())
	assert.Equal(t, "batch:"+batchID.String(), e.Subject.String())
}
