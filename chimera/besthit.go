package chimera

import (
	"sort"

	"github.com/grailbio/base/errors"
)

// ErrEmptyAlignmentSet is returned by SelectBestHits when it is given no hits.
// Only discordant fragments reach best-hit selection, so this error means an
// upstream invariant was broken.
var ErrEmptyAlignmentSet = errors.E(errors.Precondition, "empty alignment set")

// SelectBestHits returns the hits whose mismatch count is at most the minimum
// mismatch count plus tolerance, sorted by ascending mismatch count. Hits with
// the same mismatch count keep their input order. The input slice is not
// modified.
func SelectBestHits(hits []*AlignmentRecord, tolerance int) ([]*AlignmentRecord, error) {
	if len(hits) == 0 {
		return nil, ErrEmptyAlignmentSet
	}
	sorted := make([]*AlignmentRecord, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Mismatches < sorted[j].Mismatches
	})
	limit := sorted[0].Mismatches + tolerance
	n := 1
	for n < len(sorted) && sorted[n].Mismatches <= limit {
		n++
	}
	return sorted[:n:n], nil
}
