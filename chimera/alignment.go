package chimera

import (
	"github.com/grailbio/chimera/chimera/genemodel"
)

// AlignmentRecord is one (possibly spliced) alignment of one mate of a
// fragment. Records are read-only once produced by an AlignmentScanner.
type AlignmentRecord struct {
	// FragmentID identifies the read pair, usually the read name.
	FragmentID string
	// Mate is 0 for the first read of the pair, 1 for the second.
	Mate int
	// RefID is the index of the reference sequence, -1 if unmapped.
	RefID   int
	RefName string
	// Intervals are the aligned genomic segments, sorted by position. A
	// spliced alignment has one interval per exonic segment.
	Intervals []genemodel.Interval
	// Mismatches is the edit distance to the reference (the NM tag).
	Mismatches int
	Mapped     bool
	// Seq is the read sequence as stored in the alignment record.
	Seq    string
	Strand genemodel.Strand
}

// AlignmentScanner produces a stream of alignment records. All the records
// of one fragment must be adjacent in the stream. Typical usage:
//
//   for sc.Scan() {
//     rec := sc.Record()
//     ...
//   }
//   if err := sc.Err(); err != nil {...}
//
// The caller may retain the records returned by Record.
type AlignmentScanner interface {
	Scan() bool
	Record() *AlignmentRecord
	Err() error
}

// SliceScanner is an AlignmentScanner that reads from an in-memory slice.
type SliceScanner struct {
	recs []*AlignmentRecord
	i    int
}

// NewSliceScanner creates a scanner that yields recs in order.
func NewSliceScanner(recs []*AlignmentRecord) *SliceScanner {
	return &SliceScanner{recs: recs, i: -1}
}

// Scan implements AlignmentScanner.
func (s *SliceScanner) Scan() bool {
	if s.i+1 >= len(s.recs) {
		s.i = len(s.recs)
		return false
	}
	s.i++
	return true
}

// Record implements AlignmentScanner.
func (s *SliceScanner) Record() *AlignmentRecord { return s.recs[s.i] }

// Err implements AlignmentScanner. It always returns nil.
func (s *SliceScanner) Err() error { return nil }
