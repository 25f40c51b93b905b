// Package genemodel contains the gene/exon annotation model consumed by the
// chimera nominator, and readers that produce it from the gene-feature TSV
// format, GENCODE GTF files, and UCSC genePred tables.
//
// All coordinates in this package are zero-based and half-open.
package genemodel

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
)

// Strand is the genomic strand of a feature or an alignment.
type Strand uint8

const (
	// Forward is the "+" strand.
	Forward Strand = iota
	// Reverse is the "-" strand.
	Reverse
)

// String returns "+" or "-".
func (s Strand) String() string {
	if s == Reverse {
		return "-"
	}
	return "+"
}

// ParseStrand parses "+" or "-".
func ParseStrand(s string) (Strand, error) {
	switch s {
	case "+":
		return Forward, nil
	case "-":
		return Reverse, nil
	}
	return Forward, errors.E(errors.Invalid, fmt.Sprintf("invalid strand '%s'", s))
}

// Interval is a half-open range [Start, End).
type Interval struct{ Start, End int }

// Len returns the number of bases covered by the interval.
func (i Interval) Len() int { return i.End - i.Start }

// Contains checks if o lies wholly within i.
func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

// Overlaps checks if the two intervals share at least one base.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Feature is one annotated transcript.
//
// INVARIANT: Exons are sorted by ascending Start, are disjoint, and lie within
// [TxStart, TxEnd).
type Feature struct {
	// TxName is the transcript name, e.g., "uc003xzh.1" or "ENST00000279783.3".
	TxName string
	// GeneName is the gene the transcript belongs to, e.g., "TMPRSS2".
	GeneName string
	Chrom    string
	Strand   Strand
	TxStart  int
	TxEnd    int
	Exons    []Interval
}

// Extent returns the [TxStart, TxEnd) range of the transcript.
func (f *Feature) Extent() Interval { return Interval{f.TxStart, f.TxEnd} }

// Len returns the spliced length of the transcript.
func (f *Feature) Len() int {
	n := 0
	for _, e := range f.Exons {
		n += e.Len()
	}
	return n
}

// Validate checks the invariants listed in the Feature doc.
func (f *Feature) Validate() error {
	if f.TxName == "" || f.Chrom == "" {
		return errors.E(errors.Invalid, fmt.Sprintf("feature %+v: empty transcript or chromosome name", *f))
	}
	if f.TxStart > f.TxEnd {
		return errors.E(errors.Invalid, fmt.Sprintf("transcript %s: inverted range [%d,%d)", f.TxName, f.TxStart, f.TxEnd))
	}
	if len(f.Exons) == 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("transcript %s: no exons", f.TxName))
	}
	for i, e := range f.Exons {
		if e.Start >= e.End {
			return errors.E(errors.Invalid, fmt.Sprintf("transcript %s: exon %d has an empty or inverted range [%d,%d)", f.TxName, i, e.Start, e.End))
		}
		if e.Start < f.TxStart || e.End > f.TxEnd {
			return errors.E(errors.Invalid, fmt.Sprintf("transcript %s: exon %d [%d,%d) outside the transcript [%d,%d)", f.TxName, i, e.Start, e.End, f.TxStart, f.TxEnd))
		}
		if i > 0 && f.Exons[i-1].End > e.Start {
			return errors.E(errors.Invalid, fmt.Sprintf("transcript %s: exons %d and %d are unsorted or overlap", f.TxName, i-1, i))
		}
	}
	return nil
}

// SortFeatures sorts features by (chrom, TxStart, TxName).
func SortFeatures(features []Feature) {
	sort.SliceStable(features, func(i, j int) bool {
		fi, fj := &features[i], &features[j]
		if fi.Chrom != fj.Chrom {
			return fi.Chrom < fj.Chrom
		}
		if fi.TxStart != fj.TxStart {
			return fi.TxStart < fj.TxStart
		}
		return fi.TxName < fj.TxName
	})
}
