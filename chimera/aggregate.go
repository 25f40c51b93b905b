package chimera

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/chimera/chimera/genemodel"
)

// ClusterPair is the grouping key of chimera candidates. It is ordered: the
// chimera A->B is different from B->A.
type ClusterPair struct {
	Cluster5p, Cluster3p ClusterID
}

// Chimera types reported in ReportRow.Type.
const (
	TypeInterchromosomal = "interchromosomal"
	TypeOverlap          = "overlap"
	TypeInversion        = "inversion"
	TypeAdjacent         = "adjacent"
	TypeIntrachromosomal = "intrachromosomal"
)

// ReportRow is the finalized record of one chimera cluster. Genomic
// coordinates are zero-based and closed, Start <= End.
type ReportRow struct {
	Key ClusterPair

	Chrom5p          string
	Start5p, End5p   int
	Strand5p         genemodel.Strand
	Chrom3p          string
	Start3p, End3p   int
	Strand3p         genemodel.Strand
	Transcripts5p    []string
	Transcripts3p    []string
	Genes5p, Genes3p []string
	Type             string
	// Distance is the genomic gap between the partner transcripts. It is -1
	// for interchromosomal chimeras.
	Distance int

	WeightedCov              float64
	TotalFrags               int
	SpanningFrags            int
	UniqueAlignmentPositions int
	UniqueSpanningPositions  int
	// SpanningReads is a flattened list of (">fragment/readnum", sequence)
	// pairs, one per read and genomic spanning position.
	SpanningReads []string
	ChimeraIDs    []string
}

// Aggregator groups candidates by ClusterPair and produces one ReportRow per
// group. All candidates must be added before Finalize; rows can't be produced
// incrementally since their order depends on every candidate.
type Aggregator struct {
	clusters *GeneClusters
	txmap    *TranscriptMap
	opts     Opts
	groups   map[ClusterPair][]*alignedCandidate
	n        int
}

// genomePos is a zero-based genomic coordinate.
type genomePos struct {
	chrom string
	pos   int
}

// alignedCandidate is a candidate with the genomic start positions of its
// partner reads. Isoforms sharing an exon map a read to the same positions.
type alignedCandidate struct {
	*Candidate
	start5p, start3p genomePos
}

// NewAggregator creates an empty Aggregator.
func NewAggregator(clusters *GeneClusters, txmap *TranscriptMap, opts Opts) *Aggregator {
	return &Aggregator{
		clusters: clusters,
		txmap:    txmap,
		opts:     opts,
		groups:   map[ClusterPair][]*alignedCandidate{},
	}
}

// Add adds a candidate. It fails if a partner transcript is not in the gene
// clusters, or if a partner starts outside its transcript.
func (a *Aggregator) Add(c Candidate) error {
	c5, ok := a.clusters.Cluster(c.Partner5p.TxName)
	if !ok {
		return errors.E(errors.NotExist, fmt.Sprintf("candidate %s: transcript %s has no gene cluster", c.ID, c.Partner5p.TxName))
	}
	c3, ok := a.clusters.Cluster(c.Partner3p.TxName)
	if !ok {
		return errors.E(errors.NotExist, fmt.Sprintf("candidate %s: transcript %s has no gene cluster", c.ID, c.Partner3p.TxName))
	}
	ac := &alignedCandidate{Candidate: &c}
	var err error
	if ac.start5p, err = a.genomeStart(c.Partner5p); err != nil {
		return errors.E(err, "candidate", c.ID)
	}
	if ac.start3p, err = a.genomeStart(c.Partner3p); err != nil {
		return errors.E(err, "candidate", c.ID)
	}
	key := ClusterPair{c5, c3}
	a.groups[key] = append(a.groups[key], ac)
	a.n++
	return nil
}

// groupStats are the support metrics of a set of candidates.
type groupStats struct {
	weightedCov              float64
	totalFrags               int
	spanningFrags            int
	uniqueAlignmentPositions int
	uniqueSpanningPositions  int
}

type fragPair struct {
	frag string
	pair int
}

func (a *Aggregator) genomeStart(p Partner) (genomePos, error) {
	chrom, _, pos, err := a.txmap.ToGenome(p.TxName, p.Start)
	return genomePos{chrom, pos}, err
}

// computeGroupStats counts positions on the genome, so that a read compatible
// with several isoforms of a gene is counted once.
func computeGroupStats(cands []*alignedCandidate) groupStats {
	var (
		weights   = map[fragPair]float64{}
		frags     = map[string]bool{}
		spanFrags = map[string]bool{}
		alignPos  = map[[2]genomePos]bool{}
		spanPos   = map[genomePos]bool{}
	)
	for _, c := range cands {
		weights[fragPair{c.FragmentID, c.PairIndex}] = c.Weight
		frags[c.FragmentID] = true
		alignPos[[2]genomePos{c.start5p, c.start3p}] = true
		for _, s := range c.Spanning {
			spanFrags[s.FragmentID] = true
			spanPos[genomePos{s.Chrom, s.GenomePos}] = true
		}
	}
	// Floating point sums depend on the order of the terms.
	keys := make([]fragPair, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].frag != keys[j].frag {
			return keys[i].frag < keys[j].frag
		}
		return keys[i].pair < keys[j].pair
	})
	s := groupStats{
		totalFrags:               len(frags),
		spanningFrags:            len(spanFrags),
		uniqueAlignmentPositions: len(alignPos),
		uniqueSpanningPositions:  len(spanPos),
	}
	for _, k := range keys {
		s.weightedCov += weights[k]
	}
	return s
}

// better checks if a ranks higher than b as a cluster representative.
func (a groupStats) better(b groupStats) bool {
	if a.uniqueSpanningPositions != b.uniqueSpanningPositions {
		return a.uniqueSpanningPositions > b.uniqueSpanningPositions
	}
	if a.weightedCov != b.weightedCov {
		return a.weightedCov > b.weightedCov
	}
	return a.totalFrags > b.totalFrags
}

type txPair struct{ tx5p, tx3p string }

// representative picks the transcript pair that best represents the
// cluster, and returns the union of its candidates' partner spans.
func representative(cands []*alignedCandidate) (p5, p3 Partner) {
	byPair := map[txPair][]*alignedCandidate{}
	var pairs []txPair
	for _, c := range cands {
		k := txPair{c.Partner5p.TxName, c.Partner3p.TxName}
		if _, ok := byPair[k]; !ok {
			pairs = append(pairs, k)
		}
		byPair[k] = append(byPair[k], c)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].tx5p != pairs[j].tx5p {
			return pairs[i].tx5p < pairs[j].tx5p
		}
		return pairs[i].tx3p < pairs[j].tx3p
	})
	best := pairs[0]
	bestStats := computeGroupStats(byPair[best])
	for _, k := range pairs[1:] {
		if s := computeGroupStats(byPair[k]); s.better(bestStats) {
			best, bestStats = k, s
		}
	}
	for i, c := range byPair[best] {
		if i == 0 {
			p5, p3 = c.Partner5p, c.Partner3p
			continue
		}
		p5.Start, p5.End = minInt(p5.Start, c.Partner5p.Start), maxInt(p5.End, c.Partner5p.End)
		p3.Start, p3.End = minInt(p3.Start, c.Partner3p.Start), maxInt(p3.End, c.Partner3p.End)
	}
	return p5, p3
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// toGenome maps the partner's transcript span to a closed genomic range.
func (a *Aggregator) toGenome(p Partner) (chrom string, strand genemodel.Strand, start, end int, err error) {
	if chrom, strand, start, err = a.txmap.ToGenome(p.TxName, p.Start); err != nil {
		return
	}
	if _, _, end, err = a.txmap.ToGenome(p.TxName, p.End-1); err != nil {
		return
	}
	if strand == genemodel.Reverse {
		start, end = end, start
	}
	return
}

// classify computes the chimera type and the distance between the two
// partner transcripts.
func (a *Aggregator) classify(tx5p, tx3p string) (string, int) {
	f5, ok5 := a.txmap.Feature(tx5p)
	f3, ok3 := a.txmap.Feature(tx3p)
	if !ok5 || !ok3 || f5.Chrom != f3.Chrom {
		return TypeInterchromosomal, -1
	}
	e5, e3 := f5.Extent(), f3.Extent()
	if e5.Overlaps(e3) {
		return TypeOverlap, 0
	}
	dist := maxInt(e5.Start, e3.Start) - minInt(e5.End, e3.End)
	switch {
	case f5.Strand != f3.Strand:
		return TypeInversion, dist
	case dist <= a.opts.MaxAdjacentDistance:
		return TypeAdjacent, dist
	}
	return TypeIntrachromosomal, dist
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *Aggregator) finalizeGroup(key ClusterPair, cands []*alignedCandidate) (ReportRow, error) {
	row := ReportRow{Key: key}
	var (
		txs5p, txs3p     = map[string]bool{}, map[string]bool{}
		genes5p, genes3p = map[string]bool{}, map[string]bool{}
		ids              = map[string]bool{}
		spanning         []SpanningRead
	)
	for _, c := range cands {
		txs5p[fmt.Sprintf("%s:%d-%d", c.Partner5p.TxName, c.Partner5p.Start, c.Partner5p.End-1)] = true
		txs3p[fmt.Sprintf("%s:%d-%d", c.Partner3p.TxName, c.Partner3p.Start, c.Partner3p.End-1)] = true
		genes5p[c.Partner5p.GeneName] = true
		genes3p[c.Partner3p.GeneName] = true
		ids[c.ID] = true
		spanning = append(spanning, c.Spanning...)
	}
	row.Transcripts5p, row.Transcripts3p = sortedKeys(txs5p), sortedKeys(txs3p)
	row.Genes5p, row.Genes3p = sortedKeys(genes5p), sortedKeys(genes3p)
	row.ChimeraIDs = sortedKeys(ids)

	sort.SliceStable(spanning, func(i, j int) bool {
		si, sj := &spanning[i], &spanning[j]
		if si.FragmentID != sj.FragmentID {
			return si.FragmentID < sj.FragmentID
		}
		if si.Mate != sj.Mate {
			return si.Mate < sj.Mate
		}
		if si.Chrom != sj.Chrom {
			return si.Chrom < sj.Chrom
		}
		if si.GenomePos != sj.GenomePos {
			return si.GenomePos < sj.GenomePos
		}
		return si.Seq < sj.Seq
	})
	type readPos struct {
		frag string
		mate int
		pos  genomePos
	}
	seen := map[readPos]bool{}
	for _, s := range spanning {
		k := readPos{s.FragmentID, s.Mate, genomePos{s.Chrom, s.GenomePos}}
		if seen[k] {
			continue
		}
		seen[k] = true
		row.SpanningReads = append(row.SpanningReads, fmt.Sprintf(">%s/%d", s.FragmentID, s.Mate+1), s.Seq)
	}

	s := computeGroupStats(cands)
	row.WeightedCov = s.weightedCov
	row.TotalFrags = s.totalFrags
	row.SpanningFrags = s.spanningFrags
	row.UniqueAlignmentPositions = s.uniqueAlignmentPositions
	row.UniqueSpanningPositions = s.uniqueSpanningPositions

	p5, p3 := representative(cands)
	var err error
	if row.Chrom5p, row.Strand5p, row.Start5p, row.End5p, err = a.toGenome(p5); err != nil {
		return row, errors.E(err, fmt.Sprintf("5' partner %s", p5.TxName))
	}
	if row.Chrom3p, row.Strand3p, row.Start3p, row.End3p, err = a.toGenome(p3); err != nil {
		return row, errors.E(err, fmt.Sprintf("3' partner %s", p3.TxName))
	}
	row.Type, row.Distance = a.classify(p5.TxName, p3.TxName)
	return row, nil
}

// Finalize produces the report rows, sorted by descending (unique spanning
// positions, total fragments, spanning fragments), then by ascending cluster
// pair.
func (a *Aggregator) Finalize() ([]ReportRow, error) {
	rows := make([]ReportRow, 0, len(a.groups))
	for key, cands := range a.groups {
		row, err := a.finalizeGroup(key, cands)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	SortReportRows(rows)
	log.Printf("Aggregated %d candidates into %d chimera clusters", a.n, len(rows))
	return rows, nil
}

// SortReportRows sorts rows in report order.
func SortReportRows(rows []ReportRow) {
	sort.Slice(rows, func(i, j int) bool {
		ri, rj := &rows[i], &rows[j]
		if ri.UniqueSpanningPositions != rj.UniqueSpanningPositions {
			return ri.UniqueSpanningPositions > rj.UniqueSpanningPositions
		}
		if ri.TotalFrags != rj.TotalFrags {
			return ri.TotalFrags > rj.TotalFrags
		}
		if ri.SpanningFrags != rj.SpanningFrags {
			return ri.SpanningFrags > rj.SpanningFrags
		}
		if ri.Key.Cluster5p != rj.Key.Cluster5p {
			return ri.Key.Cluster5p < rj.Key.Cluster5p
		}
		return ri.Key.Cluster3p < rj.Key.Cluster3p
	})
}
