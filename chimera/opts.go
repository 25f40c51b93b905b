package chimera

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/grailbio/base/errors"
)

// LibraryType describes the strandedness of a paired-end RNA-seq library.
type LibraryType uint8

const (
	// FR means that mate 0 is sequenced from the forward strand of the
	// transcript, so the mate whose strand matches the transcript is the 5'
	// partner.
	FR LibraryType = iota
	// RF is the dUTP-style protocol: the mate on the opposite strand of the
	// transcript is the 5' partner.
	RF
)

func (t LibraryType) String() string {
	if t == RF {
		return "rf"
	}
	return "fr"
}

// ParseLibraryType parses "fr" or "rf" (case insensitive).
func ParseLibraryType(s string) (LibraryType, error) {
	switch strings.ToLower(s) {
	case "fr":
		return FR, nil
	case "rf":
		return RF, nil
	}
	return FR, errors.E(errors.Invalid, fmt.Sprintf("unknown library type '%s'; must be one of fr, rf", s))
}

type Opts struct {
	// MismatchTolerance is the number of mismatches above the best hit of a
	// mate that still counts as a best hit.
	MismatchTolerance int

	// MaxCandidatesPerFragment caps the number of hit pairs nominated for one
	// fragment. When the cross product of the two mates' best hits is larger,
	// the pairs with the highest exon expression (then the fewest mismatches)
	// are kept. Zero means unlimited.
	MaxCandidatesPerFragment int

	// LibraryType decides which mate of a pair is the 5' partner.
	LibraryType LibraryType

	// RemoveUnmapped drops unmapped records before grouping.
	RemoveUnmapped bool

	// MaxAdjacentDistance is the largest genomic gap between two partners on
	// the same chromosome and strand for the chimera to be typed "adjacent"
	// (a likely read-through event).
	MaxAdjacentDistance int

	// Parallelism is the number of nomination workers, and the max number of
	// interval trees built concurrently.
	Parallelism int
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	MismatchTolerance:        0,      // -mismatch-tolerance
	MaxCandidatesPerFragment: 64,     // -max-candidates-per-fragment
	LibraryType:              FR,     // -library-type
	RemoveUnmapped:           true,   // no flag
	MaxAdjacentDistance:      100000, // -max-adjacent-distance
	Parallelism:              runtime.NumCPU(),
}

// Validate checks the option values.
func (o *Opts) Validate() error {
	if o.MismatchTolerance < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("negative mismatch tolerance %d", o.MismatchTolerance))
	}
	if o.MaxCandidatesPerFragment < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("negative max candidates per fragment %d", o.MaxCandidatesPerFragment))
	}
	if o.MaxAdjacentDistance < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("negative max adjacent distance %d", o.MaxAdjacentDistance))
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 1
	}
	return nil
}
