package inventory

import (
	"bytes"
	"slices"

	"github.com/google/uuid"
)

// sortedUnique returns the distinct ids in ascending byte order, which is
// the order rows must be locked in
func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Compact(out)
}
