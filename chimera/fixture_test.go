package chimera

import (
	"github.com/grailbio/chimera/chimera/genemodel"
)

// testFeatures returns a small annotation:
//
//   chr1 +  T1  (G1)  exons [100,200) [300,400)
//   chr1 +  T1b (G1)  exons [100,200) [300,450)
//   chr2 -  T2  (G2)  exons [1000,1100) [1200,1300)
//   chr1 +  T3  (G3)  exons [5000,5100)
//
// T1 and T1b share their first exon and form one gene cluster.
func testFeatures() []genemodel.Feature {
	return []genemodel.Feature{
		{TxName: "T1", GeneName: "G1", Chrom: "chr1", Strand: genemodel.Forward, TxStart: 100, TxEnd: 400,
			Exons: []genemodel.Interval{{Start: 100, End: 200}, {Start: 300, End: 400}}},
		{TxName: "T1b", GeneName: "G1", Chrom: "chr1", Strand: genemodel.Forward, TxStart: 100, TxEnd: 450,
			Exons: []genemodel.Interval{{Start: 100, End: 200}, {Start: 300, End: 450}}},
		{TxName: "T2", GeneName: "G2", Chrom: "chr2", Strand: genemodel.Reverse, TxStart: 1000, TxEnd: 1300,
			Exons: []genemodel.Interval{{Start: 1000, End: 1100}, {Start: 1200, End: 1300}}},
		{TxName: "T3", GeneName: "G3", Chrom: "chr1", Strand: genemodel.Forward, TxStart: 5000, TxEnd: 5100,
			Exons: []genemodel.Interval{{Start: 5000, End: 5100}}},
	}
}

var testRefNames = []string{"chr1", "chr2", "chrM"}

func testRefID(chrom string) int {
	for i, n := range testRefNames {
		if n == chrom {
			return i
		}
	}
	return -1
}

// testRec creates a mapped single-segment alignment.
func testRec(frag string, mate int, chrom string, start, end, mismatches int, strand genemodel.Strand, seq string) *AlignmentRecord {
	return &AlignmentRecord{
		FragmentID: frag,
		Mate:       mate,
		RefID:      testRefID(chrom),
		RefName:    chrom,
		Intervals:  []genemodel.Interval{{Start: start, End: end}},
		Mismatches: mismatches,
		Mapped:     true,
		Seq:        seq,
		Strand:     strand,
	}
}

func testUnmapped(frag string, mate int) *AlignmentRecord {
	return &AlignmentRecord{FragmentID: frag, Mate: mate, RefID: -1}
}

type testEnv struct {
	features []genemodel.Feature
	index    *GeneIntervalIndex
	txmap    *TranscriptMap
	clusters *GeneClusters
}

func newTestEnv(features []genemodel.Feature) testEnv {
	index, err := NewGeneIntervalIndex(features, testRefNames, 2)
	if err != nil {
		panic(err)
	}
	return testEnv{
		features: features,
		index:    index,
		txmap:    NewTranscriptMap(index.Features()),
		clusters: BuildGeneClusters(index.Features()),
	}
}
