package chimera

import (
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/chimera/chimera/genemodel"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestTranscriptMapForward(t *testing.T) {
	m := NewTranscriptMap(testFeatures())
	expect.EQ(t, m.Len("T1"), 200)
	for _, test := range []struct{ txPos, pos int }{
		{0, 100}, {99, 199}, {100, 300}, {199, 399},
	} {
		chrom, strand, pos, err := m.ToGenome("T1", test.txPos)
		assert.NoError(t, err)
		expect.EQ(t, chrom, "chr1")
		expect.EQ(t, strand, genemodel.Forward)
		expect.EQ(t, pos, test.pos, "txpos %d", test.txPos)

		txPos, ok := m.ToTranscript("T1", test.pos)
		expect.True(t, ok)
		expect.EQ(t, txPos, test.txPos)
	}
	_, ok := m.ToTranscript("T1", 250)
	expect.False(t, ok)
}

func TestTranscriptMapReverse(t *testing.T) {
	m := NewTranscriptMap(testFeatures())
	for _, test := range []struct{ txPos, pos int }{
		{0, 1299}, {99, 1200}, {100, 1099}, {199, 1000},
	} {
		chrom, strand, pos, err := m.ToGenome("T2", test.txPos)
		assert.NoError(t, err)
		expect.EQ(t, chrom, "chr2")
		expect.EQ(t, strand, genemodel.Reverse)
		expect.EQ(t, pos, test.pos, "txpos %d", test.txPos)

		txPos, ok := m.ToTranscript("T2", test.pos)
		expect.True(t, ok)
		expect.EQ(t, txPos, test.txPos)
	}
}

func TestTranscriptMapErrors(t *testing.T) {
	m := NewTranscriptMap(testFeatures())
	_, _, _, err := m.ToGenome("T1", 200)
	expect.True(t, errors.Is(errors.Invalid, err))
	_, _, _, err = m.ToGenome("T1", -1)
	expect.True(t, errors.Is(errors.Invalid, err))
	_, _, _, err = m.ToGenome("nonexistent", 0)
	expect.True(t, errors.Is(errors.NotExist, err))
	expect.EQ(t, m.Len("nonexistent"), -1)
}

func TestTranscriptSpan(t *testing.T) {
	m := NewTranscriptMap(testFeatures())
	span, ok := m.ToTranscriptSpan("T1", []genemodel.Interval{{Start: 150, End: 200}})
	expect.True(t, ok)
	expect.EQ(t, span, genemodel.Interval{Start: 50, End: 100})

	// Spliced read.
	span, ok = m.ToTranscriptSpan("T1", []genemodel.Interval{{Start: 180, End: 200}, {Start: 300, End: 330}})
	expect.True(t, ok)
	expect.EQ(t, span, genemodel.Interval{Start: 80, End: 130})

	span, ok = m.ToTranscriptSpan("T2", []genemodel.Interval{{Start: 1250, End: 1300}})
	expect.True(t, ok)
	expect.EQ(t, span, genemodel.Interval{Start: 0, End: 50})

	_, ok = m.ToTranscriptSpan("T2", []genemodel.Interval{{Start: 1150, End: 1250}})
	expect.False(t, ok)
}

func TestExonBoundary(t *testing.T) {
	m := NewTranscriptMap(testFeatures())
	expect.EQ(t, m.ExonBoundary("T1", 0), ExonStart)
	expect.EQ(t, m.ExonBoundary("T1", 100), ExonStart|ExonEnd)
	expect.EQ(t, m.ExonBoundary("T1", 200), ExonEnd)
	expect.EQ(t, m.ExonBoundary("T1", 50), Boundary(0))
	expect.EQ(t, m.ExonBoundary("T1b", 200), Boundary(0))
	expect.EQ(t, m.ExonBoundary("unknown", 0), Boundary(0))
}

func TestGeneClusters(t *testing.T) {
	c := BuildGeneClusters(testFeatures())
	expect.EQ(t, c.NumClusters(), 3)
	for _, test := range []struct {
		tx string
		id ClusterID
	}{{"T1", 0}, {"T1b", 0}, {"T3", 1}, {"T2", 2}} {
		id, ok := c.Cluster(test.tx)
		expect.True(t, ok)
		expect.EQ(t, id, test.id, test.tx)
	}
	_, ok := c.Cluster("unknown")
	expect.False(t, ok)
	chrom, extent := c.Extent(0)
	expect.EQ(t, chrom, "chr1")
	expect.EQ(t, extent, genemodel.Interval{Start: 100, End: 450})
}

func TestGeneClustersTransitive(t *testing.T) {
	tx := func(name string, start, end int, strand genemodel.Strand) genemodel.Feature {
		return genemodel.Feature{TxName: name, GeneName: name, Chrom: "chr1", Strand: strand,
			TxStart: start, TxEnd: end, Exons: []genemodel.Interval{{Start: start, End: end}}}
	}
	features := []genemodel.Feature{
		tx("C", 250, 400, genemodel.Reverse),
		tx("A", 0, 100, genemodel.Forward),
		tx("B", 90, 260, genemodel.Forward),
		tx("D", 400, 500, genemodel.Forward), // touches C
		tx("E", 501, 600, genemodel.Forward),
	}
	c := BuildGeneClusters(features)
	expect.EQ(t, c.NumClusters(), 2)
	for _, name := range []string{"A", "B", "C", "D"} {
		id, _ := c.Cluster(name)
		expect.EQ(t, id, ClusterID(0), name)
	}
	id, _ := c.Cluster("E")
	expect.EQ(t, id, ClusterID(1))

	// Ids don't depend on the input order.
	features[0], features[4] = features[4], features[0]
	c2 := BuildGeneClusters(features)
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		id1, _ := c.Cluster(name)
		id2, _ := c2.Cluster(name)
		expect.EQ(t, id1, id2)
	}
}
