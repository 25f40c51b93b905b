package chimera

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// MateGroup is the set of alignments of one fragment, partitioned by mate.
type MateGroup struct {
	FragmentID string
	Mates      [2][]*AlignmentRecord
}

// Class is the result of classifying a MateGroup.
type Class uint8

const (
	// BothUnmapped means neither mate has an alignment.
	BothUnmapped Class = iota
	// SingleUnmapped means exactly one mate has alignments.
	SingleUnmapped
	// Discordant means both mates have alignments. Concordant pairs are
	// assumed to have been removed upstream, so every such fragment is a
	// chimera candidate.
	Discordant
)

func (c Class) String() string {
	switch c {
	case BothUnmapped:
		return "both-unmapped"
	case SingleUnmapped:
		return "single-unmapped"
	default:
		return "discordant"
	}
}

// Classify classifies the fragment.
func Classify(g *MateGroup) Class {
	n0, n1 := len(g.Mates[0]), len(g.Mates[1])
	switch {
	case n0 == 0 && n1 == 0:
		return BothUnmapped
	case n0 == 0 || n1 == 0:
		return SingleUnmapped
	}
	return Discordant
}

// Grouper groups consecutive records of an AlignmentScanner by fragment. It
// holds only the records of the current fragment. Contiguity of a fragment's
// records is not verified: if the records of one fragment are interleaved
// with another's, each run is reported as a separate group. Usage:
//
//   g := NewGrouper(sc, contam, true)
//   for g.Scan() {
//     group := g.Group()
//     ...
//   }
//   if err := g.Err(); err != nil { ... }
type Grouper struct {
	sc             AlignmentScanner
	contamRefIDs   map[int]bool
	removeUnmapped bool

	// next is the first record of the following fragment, read ahead while
	// completing the current one.
	next  *AlignmentRecord
	group MateGroup
	done  bool
	err   error
	stats Stats
}

// NewGrouper creates a Grouper. Records on references in contamRefIDs are
// dropped, and so are unmapped records if removeUnmapped is set. A fragment
// whose records are all dropped is still reported, with both mates empty.
func NewGrouper(sc AlignmentScanner, contamRefIDs map[int]bool, removeUnmapped bool) *Grouper {
	return &Grouper{
		sc:             sc,
		contamRefIDs:   contamRefIDs,
		removeUnmapped: removeUnmapped,
	}
}

func (g *Grouper) readNext() *AlignmentRecord {
	if g.done || !g.sc.Scan() {
		g.done = true
		if err := g.sc.Err(); err != nil && g.err == nil {
			g.err = err
		}
		return nil
	}
	return g.sc.Record()
}

// Scan reads the next fragment. It returns false on EOF or error.
func (g *Grouper) Scan() bool {
	if g.err != nil {
		return false
	}
	rec := g.next
	g.next = nil
	if rec == nil {
		if rec = g.readNext(); rec == nil {
			return false
		}
	}
	g.group = MateGroup{FragmentID: rec.FragmentID}
	for ; rec != nil; rec = g.readNext() {
		if rec.FragmentID != g.group.FragmentID {
			g.next = rec
			break
		}
		if rec.Mate != 0 && rec.Mate != 1 {
			g.err = errors.E(errors.Invalid, fmt.Sprintf("fragment %s: invalid mate index %d", rec.FragmentID, rec.Mate))
			return false
		}
		if g.removeUnmapped && !rec.Mapped {
			continue
		}
		if rec.Mapped && g.contamRefIDs[rec.RefID] {
			continue
		}
		g.group.Mates[rec.Mate] = append(g.group.Mates[rec.Mate], rec)
		g.stats.Alignments++
	}
	if g.err != nil {
		return false
	}
	g.stats.Fragments++
	return true
}

// Group returns the fragment read by the last call to Scan. The group is
// valid until the next Scan call.
//
// REQUIRES: the last Scan call returned true.
func (g *Grouper) Group() *MateGroup { return &g.group }

// Err returns the first error encountered by the scanner or by the grouper.
func (g *Grouper) Err() error { return g.err }

// Stats returns the fragment and alignment counts accumulated so far.
func (g *Grouper) Stats() Stats { return g.stats }
