package chimera

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/chimera/chimera/genemodel"
)

// txExon is an exon in transcript orientation.
type txExon struct {
	genomic genemodel.Interval
	// offset is the transcript coordinate of the exon's 5'-most base.
	offset int
}

type txEntry struct {
	feature *genemodel.Feature
	// exons are ordered 5' to 3' along the transcript. For a reverse-strand
	// transcript this is descending genomic order.
	exons  []txExon
	length int
}

// TranscriptMap converts between transcript and genomic coordinates.
//
// Transcript coordinates are zero-based offsets into the spliced transcript,
// counted from its 5' end. On a reverse-strand transcript, transcript
// position 0 is the last base of the last exon in genomic order.
type TranscriptMap struct {
	byName map[string]*txEntry
}

// NewTranscriptMap creates a map over the given transcripts. If two
// transcripts share a name, the first one is used.
func NewTranscriptMap(features []genemodel.Feature) *TranscriptMap {
	m := &TranscriptMap{byName: make(map[string]*txEntry, len(features))}
	nDup := 0
	for i := range features {
		f := &features[i]
		if _, ok := m.byName[f.TxName]; ok {
			nDup++
			continue
		}
		e := &txEntry{feature: f, exons: make([]txExon, len(f.Exons))}
		for j := range f.Exons {
			k := j
			if f.Strand == genemodel.Reverse {
				k = len(f.Exons) - 1 - j
			}
			e.exons[j] = txExon{genomic: f.Exons[k], offset: e.length}
			e.length += f.Exons[k].Len()
		}
		m.byName[f.TxName] = e
	}
	if nDup > 0 {
		log.Error.Printf("transcript map: ignored %d transcripts with duplicate names", nDup)
	}
	return m
}

// Feature returns the transcript with the given name.
func (m *TranscriptMap) Feature(tx string) (*genemodel.Feature, bool) {
	e, ok := m.byName[tx]
	if !ok {
		return nil, false
	}
	return e.feature, true
}

// Len returns the spliced length of the transcript, or -1 if it's unknown.
func (m *TranscriptMap) Len(tx string) int {
	e, ok := m.byName[tx]
	if !ok {
		return -1
	}
	return e.length
}

// ToGenome maps a transcript position to the genomic position of the same
// base.
func (m *TranscriptMap) ToGenome(tx string, txPos int) (chrom string, strand genemodel.Strand, pos int, err error) {
	e, ok := m.byName[tx]
	if !ok {
		return "", genemodel.Forward, 0, errors.E(errors.NotExist, fmt.Sprintf("unknown transcript %s", tx))
	}
	if txPos < 0 || txPos >= e.length {
		return "", genemodel.Forward, 0, errors.E(errors.Invalid,
			fmt.Sprintf("position %d is outside transcript %s of length %d", txPos, tx, e.length))
	}
	// Find the last exon whose offset is <= txPos.
	k := sort.Search(len(e.exons), func(i int) bool { return e.exons[i].offset > txPos }) - 1
	x := e.exons[k]
	f := e.feature
	if f.Strand == genemodel.Reverse {
		pos = x.genomic.End - 1 - (txPos - x.offset)
	} else {
		pos = x.genomic.Start + (txPos - x.offset)
	}
	return f.Chrom, f.Strand, pos, nil
}

// ToTranscript maps a genomic position to the transcript. It returns false if
// the position is not exonic in the transcript.
func (m *TranscriptMap) ToTranscript(tx string, pos int) (int, bool) {
	e, ok := m.byName[tx]
	if !ok {
		return 0, false
	}
	for _, x := range e.exons {
		if pos >= x.genomic.Start && pos < x.genomic.End {
			if e.feature.Strand == genemodel.Reverse {
				return x.offset + (x.genomic.End - 1 - pos), true
			}
			return x.offset + (pos - x.genomic.Start), true
		}
	}
	return 0, false
}

// ToTranscriptSpan maps the aligned genomic segments of a read to a half-open
// transcript interval. It returns false if either end of the alignment is not
// exonic in the transcript.
func (m *TranscriptMap) ToTranscriptSpan(tx string, segments []genemodel.Interval) (genemodel.Interval, bool) {
	if len(segments) == 0 {
		return genemodel.Interval{}, false
	}
	first, ok1 := m.ToTranscript(tx, segments[0].Start)
	last, ok2 := m.ToTranscript(tx, segments[len(segments)-1].End-1)
	if !ok1 || !ok2 {
		return genemodel.Interval{}, false
	}
	if first > last {
		first, last = last, first
	}
	return genemodel.Interval{Start: first, End: last + 1}, true
}

// Boundary describes how a transcript position relates to the exon
// structure.
type Boundary uint8

const (
	// ExonStart is set if the position is the first base of an exon.
	ExonStart Boundary = 1 << iota
	// ExonEnd is set if the position is one past the last base of an exon.
	ExonEnd
)

// ExonBoundary reports whether txPos is at an exon boundary of the
// transcript. Exon junctions are both an ExonEnd and an ExonStart.
func (m *TranscriptMap) ExonBoundary(tx string, txPos int) Boundary {
	e, ok := m.byName[tx]
	if !ok {
		return 0
	}
	var b Boundary
	for _, x := range e.exons {
		if txPos == x.offset {
			b |= ExonStart
		}
		if txPos == x.offset+x.genomic.Len() {
			b |= ExonEnd
		}
	}
	return b
}

// ClusterID identifies a GeneCluster.
type ClusterID int

// GeneClusters groups transcripts whose genomic extents overlap, directly or
// through other transcripts, regardless of strand.
type GeneClusters struct {
	byTx map[string]ClusterID
	// extents[id] is the genomic range covered by the cluster.
	chroms  []string
	extents []genemodel.Interval
}

// BuildGeneClusters computes the clusters. Cluster ids are assigned in
// order of (chromosome name, start), so they don't depend on the order of
// features. Transcripts that touch without overlapping are also merged. If two
// transcripts share a name, the first one is used.
func BuildGeneClusters(features []genemodel.Feature) *GeneClusters {
	byChrom := map[string][]*genemodel.Feature{}
	seen := map[string]bool{}
	for i := range features {
		f := &features[i]
		if seen[f.TxName] {
			continue
		}
		seen[f.TxName] = true
		byChrom[f.Chrom] = append(byChrom[f.Chrom], f)
	}
	chroms := make([]string, 0, len(byChrom))
	for chrom := range byChrom {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)

	c := &GeneClusters{byTx: make(map[string]ClusterID, len(seen))}
	for _, chrom := range chroms {
		txs := byChrom[chrom]
		sort.Slice(txs, func(i, j int) bool {
			if txs[i].TxStart != txs[j].TxStart {
				return txs[i].TxStart < txs[j].TxStart
			}
			if txs[i].TxEnd != txs[j].TxEnd {
				return txs[i].TxEnd < txs[j].TxEnd
			}
			return txs[i].TxName < txs[j].TxName
		})
		var cur *genemodel.Interval
		for _, f := range txs {
			if cur == nil || f.TxStart > cur.End {
				c.chroms = append(c.chroms, chrom)
				c.extents = append(c.extents, f.Extent())
				cur = &c.extents[len(c.extents)-1]
			} else if f.TxEnd > cur.End {
				cur.End = f.TxEnd
			}
			c.byTx[f.TxName] = ClusterID(len(c.extents) - 1)
		}
	}
	return c
}

// Cluster returns the cluster of the transcript.
func (c *GeneClusters) Cluster(tx string) (ClusterID, bool) {
	id, ok := c.byTx[tx]
	return id, ok
}

// NumClusters returns the number of clusters.
func (c *GeneClusters) NumClusters() int { return len(c.extents) }

// Extent returns the chromosome and the genomic range of the cluster.
func (c *GeneClusters) Extent(id ClusterID) (string, genemodel.Interval) {
	return c.chroms[id], c.extents[id]
}
