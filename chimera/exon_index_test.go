package chimera

import (
	"testing"

	"github.com/grailbio/chimera/chimera/genemodel"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestExonDedup(t *testing.T) {
	idx, err := NewGeneIntervalIndex(testFeatures(), nil, 1)
	assert.NoError(t, err)
	// T1 and T1b share [100,200).
	expect.EQ(t, idx.NumExons(), 6)
	expect.EQ(t, idx.ExonRefs(0), []ExonRef{{Feature: 0, ExonNum: 0}, {Feature: 1, ExonNum: 0}})
	expect.EQ(t, idx.ExonRefs(1), []ExonRef{{Feature: 0, ExonNum: 1}})
	expect.EQ(t, idx.ExonRefs(2), []ExonRef{{Feature: 1, ExonNum: 1}})
	expect.EQ(t, idx.Exon(3), Exon{Chrom: "chr2", Strand: genemodel.Reverse, Interval: genemodel.Interval{Start: 1000, End: 1100}})
	for id := 0; id < idx.NumExons(); id++ {
		expect.True(t, len(idx.ExonRefs(ExonID(id))) > 0)
	}
}

func TestExonDedupStrand(t *testing.T) {
	features := []genemodel.Feature{
		{TxName: "A", GeneName: "GA", Chrom: "chr1", Strand: genemodel.Forward, TxStart: 0, TxEnd: 100, Exons: []genemodel.Interval{{Start: 0, End: 100}}},
		{TxName: "B", GeneName: "GB", Chrom: "chr1", Strand: genemodel.Reverse, TxStart: 0, TxEnd: 100, Exons: []genemodel.Interval{{Start: 0, End: 100}}},
		{TxName: "C", GeneName: "GC", Chrom: "chr1", Strand: genemodel.Forward, TxStart: 0, TxEnd: 100, Exons: []genemodel.Interval{{Start: 0, End: 100}}},
	}
	idx, err := NewGeneIntervalIndex(features, nil, 1)
	assert.NoError(t, err)
	// Same range, different strand: distinct exons.
	expect.EQ(t, idx.NumExons(), 2)
	expect.EQ(t, idx.ExonRefs(0), []ExonRef{{0, 0}, {2, 0}})
	expect.EQ(t, idx.ExonRefs(1), []ExonRef{{1, 0}})
	expect.EQ(t, idx.ResolveExons("chr1", []genemodel.Interval{{Start: 10, End: 20}}), []ExonID{0, 1})
}

func TestResolveExonsIntersection(t *testing.T) {
	// Exons A=[100,200), C=[300,400) of T1 and B=[50,450) of T5.
	features := []genemodel.Feature{
		{TxName: "T1", GeneName: "G1", Chrom: "chr1", TxStart: 100, TxEnd: 400, Exons: []genemodel.Interval{{Start: 100, End: 200}, {Start: 300, End: 400}}},
		{TxName: "T5", GeneName: "G5", Chrom: "chr1", TxStart: 50, TxEnd: 450, Exons: []genemodel.Interval{{Start: 50, End: 450}}},
	}
	const a, c, b = 0, 1, 2
	idx, err := NewGeneIntervalIndex(features, nil, 1)
	assert.NoError(t, err)

	expect.EQ(t, idx.ResolveExons("chr1", []genemodel.Interval{{Start: 120, End: 150}}), []ExonID{a, b})
	expect.EQ(t, idx.ResolveExons("chr1", []genemodel.Interval{{Start: 320, End: 350}}), []ExonID{c, b})
	// {A,B} & {B,C} = {B}
	expect.EQ(t, idx.ResolveExons("chr1", []genemodel.Interval{{Start: 120, End: 150}, {Start: 320, End: 350}}), []ExonID{b})
	// {A,B} & {} = {}
	expect.EQ(t, len(idx.ResolveExons("chr1", []genemodel.Interval{{Start: 120, End: 150}, {Start: 460, End: 470}})), 0)
	// Overlap without containment doesn't count.
	expect.EQ(t, idx.ResolveExons("chr1", []genemodel.Interval{{Start: 180, End: 220}}), []ExonID{b})
	expect.EQ(t, len(idx.ResolveExons("chr1", []genemodel.Interval{{Start: 40, End: 60}})), 0)
	// Exact exon boundaries are contained.
	expect.EQ(t, idx.ResolveExons("chr1", []genemodel.Interval{{Start: 100, End: 200}}), []ExonID{a, b})

	expect.EQ(t, len(idx.ResolveExons("chr9", []genemodel.Interval{{Start: 120, End: 150}})), 0)
	expect.EQ(t, len(idx.ResolveExons("chr1", nil)), 0)

	hits := idx.ResolveTranscripts("chr1", []genemodel.Interval{{Start: 120, End: 150}})
	expect.EQ(t, hits, []TranscriptHit{{Feature: 0, ExonNums: []int{0}}, {Feature: 1, ExonNums: []int{0}}})
	hits = idx.ResolveTranscripts("chr1", []genemodel.Interval{{Start: 120, End: 150}, {Start: 320, End: 350}})
	expect.EQ(t, hits, []TranscriptHit{{Feature: 1, ExonNums: []int{0}}})
}

func TestGeneIntervalIndexSkipsUnknownChromosomes(t *testing.T) {
	idx, err := NewGeneIntervalIndex(testFeatures(), []string{"chr1"}, 4)
	assert.NoError(t, err)
	expect.EQ(t, idx.SkippedFeatures(), 1)
	expect.EQ(t, idx.NumFeatures(), 3)
	expect.EQ(t, len(idx.ResolveExons("chr2", []genemodel.Interval{{Start: 1010, End: 1020}})), 0)
	expect.EQ(t, len(idx.ResolveExons("chr1", []genemodel.Interval{{Start: 5010, End: 5020}})), 1)
}

func TestGeneIntervalIndexParallelism(t *testing.T) {
	var features []genemodel.Feature
	for chrom := 0; chrom < 30; chrom++ {
		for i := 0; i < 20; i++ {
			start := i * 1000
			features = append(features, genemodel.Feature{
				TxName:   "T" + string(rune('A'+chrom)) + string(rune('a'+i)),
				GeneName: "G",
				Chrom:    "chr" + string(rune('A'+chrom)),
				TxStart:  start,
				TxEnd:    start + 500,
				Exons:    []genemodel.Interval{{Start: start, End: start + 200}, {Start: start + 300, End: start + 500}},
			})
		}
	}
	for _, parallelism := range []int{0, 1, 3, 64} {
		idx, err := NewGeneIntervalIndex(features, nil, parallelism)
		assert.NoError(t, err)
		expect.EQ(t, idx.NumExons(), 30*20*2)
		for _, f := range features {
			ids := idx.ResolveExons(f.Chrom, []genemodel.Interval{{Start: f.Exons[1].Start + 10, End: f.Exons[1].Start + 20}})
			assert.EQ(t, len(ids), 1)
			expect.EQ(t, idx.Exon(ids[0]).Interval, f.Exons[1])
		}
	}
}
