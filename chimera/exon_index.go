package chimera

import (
	"sort"

	"github.com/biogo/store/interval"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/chimera/chimera/genemodel"
)

// ExonID is a dense id assigned to each distinct (chrom, start, end, strand)
// exon, in the order of first appearance.
type ExonID int

// ExonRef is one use of an exon by a transcript.
type ExonRef struct {
	// Feature is the index of the transcript in GeneIntervalIndex.Feature.
	Feature int
	// ExonNum is the index of the exon in Feature.Exons, i.e., in genomic order.
	ExonNum int
}

// Exon is a deduplicated exon.
type Exon struct {
	Chrom  string
	Strand genemodel.Strand
	genemodel.Interval
}

// exonNode is stored in the interval tree. It implements
// interval.IntInterface.
type exonNode struct {
	id ExonID
	iv genemodel.Interval
}

func (n exonNode) Overlap(b interval.IntRange) bool {
	return n.iv.Start < b.End && b.Start < n.iv.End
}
func (n exonNode) ID() uintptr { return uintptr(n.id) }
func (n exonNode) Range() interval.IntRange {
	return interval.IntRange{Start: n.iv.Start, End: n.iv.End}
}

// containedQuery matches the tree nodes that wholly contain the segment.
type containedQuery genemodel.Interval

func (q containedQuery) Overlap(b interval.IntRange) bool {
	return b.Start <= q.Start && q.End <= b.End
}

// GeneIntervalIndex maps genomic segments to the annotated exons that contain
// them. It is immutable once built and can be shared by goroutines.
type GeneIntervalIndex struct {
	features []genemodel.Feature
	exons    []Exon
	// refs[id] lists every transcript exon deduplicated into id. Never empty.
	refs    [][]ExonRef
	trees   map[string]*interval.IntTree
	skipped int
}

// NewGeneIntervalIndex builds an index over the exons of the given
// transcripts. Transcripts on chromosomes not listed in refNames are skipped;
// refNames=nil accepts every chromosome. Trees for different chromosomes are
// built by up to parallelism goroutines.
func NewGeneIntervalIndex(features []genemodel.Feature, refNames []string, parallelism int) (*GeneIntervalIndex, error) {
	var known map[string]bool
	if refNames != nil {
		known = make(map[string]bool, len(refNames))
		for _, n := range refNames {
			known[n] = true
		}
	}
	idx := &GeneIntervalIndex{trees: map[string]*interval.IntTree{}}
	type exonKey struct {
		chrom      string
		start, end int
		strand     genemodel.Strand
	}
	var (
		exonIDs    = map[exonKey]ExonID{}
		chromExons = map[string][]ExonID{}
		skipped    = map[string]int{}
	)
	for _, f := range features {
		if known != nil && !known[f.Chrom] {
			skipped[f.Chrom]++
			continue
		}
		fi := len(idx.features)
		idx.features = append(idx.features, f)
		for exonNum, e := range f.Exons {
			key := exonKey{f.Chrom, e.Start, e.End, f.Strand}
			id, ok := exonIDs[key]
			if !ok {
				id = ExonID(len(idx.exons))
				exonIDs[key] = id
				idx.exons = append(idx.exons, Exon{Chrom: f.Chrom, Strand: f.Strand, Interval: e})
				idx.refs = append(idx.refs, nil)
				chromExons[f.Chrom] = append(chromExons[f.Chrom], id)
			}
			idx.refs[id] = append(idx.refs[id], ExonRef{Feature: fi, ExonNum: exonNum})
		}
	}
	for chrom, n := range skipped {
		log.Error.Printf("skipped %d transcripts on chromosome %s, which is not in the alignment references", n, chrom)
		idx.skipped += n
	}

	chroms := make([]string, 0, len(chromExons))
	for chrom := range chromExons {
		chroms = append(chroms, chrom)
		idx.trees[chrom] = &interval.IntTree{}
	}
	sort.Strings(chroms)
	if parallelism <= 0 {
		parallelism = 1
	}
	if parallelism > len(chroms) {
		parallelism = len(chroms)
	}
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(chroms)) / parallelism
		endIdx := ((jobIdx + 1) * len(chroms)) / parallelism
		for _, chrom := range chroms[startIdx:endIdx] {
			tree := idx.trees[chrom]
			for _, id := range chromExons[chrom] {
				if err := tree.Insert(exonNode{id: id, iv: idx.exons[id].Interval}, true); err != nil {
					return err
				}
			}
			tree.AdjustRanges()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Indexed %d exons of %d transcripts on %d chromosomes", len(idx.exons), len(idx.features), len(chroms))
	return idx, nil
}

// NumExons returns the number of distinct exons.
func (idx *GeneIntervalIndex) NumExons() int { return len(idx.exons) }

// Exon returns the exon with the given id.
func (idx *GeneIntervalIndex) Exon(id ExonID) Exon { return idx.exons[id] }

// ExonRefs returns the transcript exons that share the given exon. The result
// is in the order the transcripts were given to NewGeneIntervalIndex, and
// must not be modified.
func (idx *GeneIntervalIndex) ExonRefs(id ExonID) []ExonRef { return idx.refs[id] }

// NumFeatures returns the number of indexed transcripts.
func (idx *GeneIntervalIndex) NumFeatures() int { return len(idx.features) }

// Feature returns the i'th indexed transcript.
func (idx *GeneIntervalIndex) Feature(i int) *genemodel.Feature { return &idx.features[i] }

// Features returns all indexed transcripts. The result must not be modified.
func (idx *GeneIntervalIndex) Features() []genemodel.Feature { return idx.features }

// SkippedFeatures returns the number of transcripts dropped because their
// chromosome isn't an alignment reference.
func (idx *GeneIntervalIndex) SkippedFeatures() int { return idx.skipped }

func (idx *GeneIntervalIndex) containing(tree *interval.IntTree, seg genemodel.Interval) []ExonID {
	var ids []ExonID
	for _, hit := range tree.Get(containedQuery(seg)) {
		ids = append(ids, hit.(exonNode).id)
	}
	sortExonIDs(ids)
	return ids
}

func sortExonIDs(ids []ExonID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// intersectSorted returns the ids that appear in both sorted lists. The
// result reuses the storage of a.
func intersectSorted(a, b []ExonID) []ExonID {
	out := a[:0]
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// ResolveExons returns the exons that contain every one of the segments, in
// ascending id order. Each segment must lie wholly within an exon; mere
// overlap doesn't count. The result is empty if the chromosome has no
// exons, segments is empty, or some segment has no containing exon.
func (idx *GeneIntervalIndex) ResolveExons(chrom string, segments []genemodel.Interval) []ExonID {
	tree := idx.trees[chrom]
	if tree == nil || len(segments) == 0 {
		return nil
	}
	ids := idx.containing(tree, segments[0])
	for _, seg := range segments[1:] {
		if len(ids) == 0 {
			break
		}
		ids = intersectSorted(ids, idx.containing(tree, seg))
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// TranscriptHit is a transcript compatible with an alignment.
type TranscriptHit struct {
	// Feature is the index of the transcript in GeneIntervalIndex.Feature.
	Feature int
	// ExonNums lists the transcript's exons (genomic order) that contain the
	// alignment, ascending.
	ExonNums []int
}

// ResolveTranscripts expands ResolveExons into transcripts. The result is
// sorted by transcript index.
func (idx *GeneIntervalIndex) ResolveTranscripts(chrom string, segments []genemodel.Interval) []TranscriptHit {
	ids := idx.ResolveExons(chrom, segments)
	if len(ids) == 0 {
		return nil
	}
	byFeature := map[int][]int{}
	for _, id := range ids {
		for _, ref := range idx.refs[id] {
			byFeature[ref.Feature] = append(byFeature[ref.Feature], ref.ExonNum)
		}
	}
	hits := make([]TranscriptHit, 0, len(byFeature))
	for fi, nums := range byFeature {
		sort.Ints(nums)
		hits = append(hits, TranscriptHit{Feature: fi, ExonNums: nums})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Feature < hits[j].Feature })
	return hits
}
