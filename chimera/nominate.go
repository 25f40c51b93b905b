package chimera

import (
	"fmt"
	"sort"

	"github.com/grailbio/chimera/chimera/genemodel"
)

// HitPair is one combination of a mate-0 best hit and a mate-1 best hit.
type HitPair struct {
	Mate0, Mate1 *AlignmentRecord
	// Multimap is set if either mate has more than one best hit.
	Multimap bool
}

// CrossProduct returns every (best0[i], best1[j]) pair, ordered by i then j.
func CrossProduct(best0, best1 []*AlignmentRecord) []HitPair {
	multimap := len(best0) > 1 || len(best1) > 1
	pairs := make([]HitPair, 0, len(best0)*len(best1))
	for _, r0 := range best0 {
		for _, r1 := range best1 {
			pairs = append(pairs, HitPair{Mate0: r0, Mate1: r1, Multimap: multimap})
		}
	}
	return pairs
}

// Partner is one side of a chimera, in transcript coordinates.
type Partner struct {
	TxName   string
	GeneName string
	// Start and End delimit the read on the transcript, half-open.
	Start, End int
	// Expression is the max expression of the exons the read lands in; zero if
	// unknown.
	Expression float64
}

// SpanningRead is a read that ends at the exon boundary facing the chimeric
// junction.
type SpanningRead struct {
	FragmentID string
	Mate       int
	TxName     string
	// Pos is the transcript coordinate of the boundary.
	Pos int
	// Chrom and GenomePos locate the junction-side base of the read's exon on
	// the genome. Isoforms that share the exon share the genomic position.
	Chrom     string
	GenomePos int
	Seq       string
}

// Candidate is a chimera nominated by one fragment.
type Candidate struct {
	// ID is "fragment/pairindex". Candidates derived from the same hit pair
	// share the ID.
	ID         string
	FragmentID string
	// PairIndex is the index of the hit pair in the fragment's cross product.
	PairIndex int
	Multimap  bool
	// Weight is 1/(number of hit pairs nominated for the fragment).
	Weight    float64
	Partner5p Partner
	Partner3p Partner
	Spanning  []SpanningRead
}

// Nominator turns the best hits of discordant fragments into chimera
// candidates. It is immutable and can be shared by goroutines.
type Nominator struct {
	index *GeneIntervalIndex
	txmap *TranscriptMap
	expr  *ExpressionTable
	opts  Opts
}

// NewNominator creates a Nominator. expr may be nil.
func NewNominator(index *GeneIntervalIndex, txmap *TranscriptMap, expr *ExpressionTable, opts Opts) *Nominator {
	return &Nominator{index: index, txmap: txmap, expr: expr, opts: opts}
}

// resolvedHit is a transcript compatible with one alignment.
type resolvedHit struct {
	feature *genemodel.Feature
	span    genemodel.Interval
	expr    float64
}

func (n *Nominator) resolve(r *AlignmentRecord) []resolvedHit {
	if !r.Mapped {
		return nil
	}
	var hits []resolvedHit
	for _, th := range n.index.ResolveTranscripts(r.RefName, r.Intervals) {
		f := n.index.Feature(th.Feature)
		span, ok := n.txmap.ToTranscriptSpan(f.TxName, r.Intervals)
		if !ok {
			continue
		}
		h := resolvedHit{feature: f, span: span}
		for _, exonNum := range th.ExonNums {
			if v, ok := n.expr.Exon(f.GeneName, exonNum); ok && v > h.expr {
				h.expr = v
			}
		}
		hits = append(hits, h)
	}
	return hits
}

func maxExpr(hits []resolvedHit) float64 {
	v := 0.0
	for _, h := range hits {
		if h.expr > v {
			v = h.expr
		}
	}
	return v
}

// Nominate creates the candidates of one discordant fragment. best0 and best1
// are the best hits of the two mates. Counters are added to stats.
func (n *Nominator) Nominate(fragID string, best0, best1 []*AlignmentRecord, stats *Stats) []Candidate {
	pairs := CrossProduct(best0, best1)
	resolved := map[*AlignmentRecord][]resolvedHit{}
	lookup := func(r *AlignmentRecord) []resolvedHit {
		hits, ok := resolved[r]
		if !ok {
			hits = n.resolve(r)
			resolved[r] = hits
		}
		return hits
	}

	// indices[i] is the position of the i'th kept pair in the cross product.
	indices := make([]int, len(pairs))
	for i := range indices {
		indices[i] = i
	}
	if limit := n.opts.MaxCandidatesPerFragment; limit > 0 && len(pairs) > limit {
		expr := make([]float64, len(pairs))
		for i, p := range pairs {
			expr[i] = maxExpr(lookup(p.Mate0)) + maxExpr(lookup(p.Mate1))
		}
		sort.SliceStable(indices, func(i, j int) bool {
			pi, pj := indices[i], indices[j]
			if expr[pi] != expr[pj] {
				return expr[pi] > expr[pj]
			}
			mi := pairs[pi].Mate0.Mismatches + pairs[pi].Mate1.Mismatches
			mj := pairs[pj].Mate0.Mismatches + pairs[pj].Mate1.Mismatches
			return mi < mj
		})
		indices = indices[:limit]
		sort.Ints(indices)
		stats.TruncatedFragments++
	}

	weight := 1 / float64(len(indices))
	var candidates []Candidate
	for _, pi := range indices {
		p := pairs[pi]
		hits0, hits1 := lookup(p.Mate0), lookup(p.Mate1)
		if len(hits0) == 0 || len(hits1) == 0 {
			stats.UnresolvedPairs++
			continue
		}
		for _, h0 := range hits0 {
			for _, h1 := range hits1 {
				sense0 := p.Mate0.Strand == h0.feature.Strand
				sense1 := p.Mate1.Strand == h1.feature.Strand
				if sense0 == sense1 {
					stats.OrientationMismatches++
					continue
				}
				r5, h5, r3, h3 := p.Mate0, h0, p.Mate1, h1
				if sense0 != (n.opts.LibraryType == FR) {
					r5, h5, r3, h3 = p.Mate1, h1, p.Mate0, h0
				}
				c := Candidate{
					ID:         fmt.Sprintf("%s/%d", fragID, pi),
					FragmentID: fragID,
					PairIndex:  pi,
					Multimap:   p.Multimap,
					Weight:     weight,
					Partner5p:  partner(h5),
					Partner3p:  partner(h3),
				}
				if n.txmap.ExonBoundary(h5.feature.TxName, h5.span.End)&ExonEnd != 0 {
					if s, ok := n.spanning(fragID, r5, h5, h5.span.End, h5.span.End-1); ok {
						c.Spanning = append(c.Spanning, s)
					}
				}
				if n.txmap.ExonBoundary(h3.feature.TxName, h3.span.Start)&ExonStart != 0 {
					if s, ok := n.spanning(fragID, r3, h3, h3.span.Start, h3.span.Start); ok {
						c.Spanning = append(c.Spanning, s)
					}
				}
				candidates = append(candidates, c)
			}
		}
	}
	stats.Candidates += len(candidates)
	return candidates
}

// spanning creates the spanning record of read r. pos is the boundary and
// base is the transcript position of the exonic base next to it.
func (n *Nominator) spanning(fragID string, r *AlignmentRecord, h resolvedHit, pos, base int) (SpanningRead, bool) {
	chrom, _, gpos, err := n.txmap.ToGenome(h.feature.TxName, base)
	if err != nil {
		return SpanningRead{}, false
	}
	return SpanningRead{
		FragmentID: fragID,
		Mate:       r.Mate,
		TxName:     h.feature.TxName,
		Pos:        pos,
		Chrom:      chrom,
		GenomePos:  gpos,
		Seq:        r.Seq,
	}, true
}

func partner(h resolvedHit) Partner {
	return Partner{
		TxName:     h.feature.TxName,
		GeneName:   h.feature.GeneName,
		Start:      h.span.Start,
		End:        h.span.End,
		Expression: h.expr,
	}
}
