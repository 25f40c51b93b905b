package chimera

import (
	"math/rand"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testHits(mismatches ...int) []*AlignmentRecord {
	hits := make([]*AlignmentRecord, len(mismatches))
	for i, mm := range mismatches {
		hits[i] = &AlignmentRecord{FragmentID: "F", RefID: i, Mismatches: mm, Mapped: true}
	}
	return hits
}

func refIDs(hits []*AlignmentRecord) []int {
	ids := make([]int, len(hits))
	for i, h := range hits {
		ids[i] = h.RefID
	}
	return ids
}

func TestSelectBestHits(t *testing.T) {
	hits := testHits(3, 1, 2, 1, 5)
	best, err := SelectBestHits(hits, 0)
	assert.NoError(t, err)
	expect.EQ(t, refIDs(best), []int{1, 3})

	best, err = SelectBestHits(hits, 1)
	assert.NoError(t, err)
	expect.EQ(t, refIDs(best), []int{1, 3, 2})

	best, err = SelectBestHits(hits, 10)
	assert.NoError(t, err)
	expect.EQ(t, refIDs(best), []int{1, 3, 2, 0, 4})

	// The input is not reordered.
	expect.EQ(t, refIDs(hits), []int{0, 1, 2, 3, 4})
}

func TestSelectBestHitsEmpty(t *testing.T) {
	_, err := SelectBestHits(nil, 0)
	expect.EQ(t, err, ErrEmptyAlignmentSet)
	expect.True(t, errors.Is(errors.Precondition, err))
}

func TestSelectBestHitsRandom(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	for iter := 0; iter < 1000; iter++ {
		n := 1 + r.Intn(20)
		mm := make([]int, n)
		min := 1 << 30
		for i := range mm {
			mm[i] = r.Intn(8)
			if mm[i] < min {
				min = mm[i]
			}
		}
		tolerance := r.Intn(4)
		best, err := SelectBestHits(testHits(mm...), tolerance)
		assert.NoError(t, err)
		assert.True(t, len(best) > 0)
		expect.EQ(t, best[0].Mismatches, min)

		nExpected := 0
		for _, m := range mm {
			if m <= min+tolerance {
				nExpected++
			}
		}
		expect.EQ(t, len(best), nExpected, "mismatches %v, tolerance %d", mm, tolerance)
		seen := map[int]bool{}
		for _, h := range best {
			expect.True(t, h.Mismatches <= min+tolerance)
			expect.False(t, seen[h.RefID], "duplicate hit %d", h.RefID)
			seen[h.RefID] = true
		}
	}
}
