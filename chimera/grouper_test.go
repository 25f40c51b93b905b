package chimera

import (
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/chimera/chimera/genemodel"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

type testGroup struct {
	frag       string
	n0, n1     int
	class      Class
	refsOfMate [2][]int
}

func readGroups(t *testing.T, g *Grouper) []testGroup {
	var groups []testGroup
	for g.Scan() {
		mg := g.Group()
		tg := testGroup{frag: mg.FragmentID, n0: len(mg.Mates[0]), n1: len(mg.Mates[1]), class: Classify(mg)}
		for m := 0; m < 2; m++ {
			for _, r := range mg.Mates[m] {
				tg.refsOfMate[m] = append(tg.refsOfMate[m], r.RefID)
			}
		}
		groups = append(groups, tg)
	}
	return groups
}

func TestGrouper(t *testing.T) {
	fw := genemodel.Forward
	recs := []*AlignmentRecord{
		testRec("F1", 0, "chr1", 100, 150, 0, fw, ""),
		testRec("F1", 1, "chr2", 1000, 1050, 0, fw, ""),
		testRec("F1", 0, "chr1", 300, 350, 1, fw, ""),
		testUnmapped("F2", 0),
		testUnmapped("F2", 1),
		testRec("F3", 0, "chr1", 100, 150, 0, fw, ""),
		testUnmapped("F3", 1),
		testRec("F4", 0, "chrM", 100, 150, 0, fw, ""),
		testRec("F4", 1, "chr2", 100, 150, 0, fw, ""),
	}
	g := NewGrouper(NewSliceScanner(recs), map[int]bool{testRefID("chrM"): true}, true)
	groups := readGroups(t, g)
	assert.NoError(t, g.Err())
	expect.EQ(t, groups, []testGroup{
		{frag: "F1", n0: 2, n1: 1, class: Discordant, refsOfMate: [2][]int{{0, 0}, {1}}},
		{frag: "F2", class: BothUnmapped},
		{frag: "F3", n0: 1, class: SingleUnmapped, refsOfMate: [2][]int{{0}, nil}},
		{frag: "F4", n1: 1, class: SingleUnmapped, refsOfMate: [2][]int{nil, {1}}},
	})
	expect.EQ(t, g.Stats(), Stats{Fragments: 4, Alignments: 5})
}

func TestGrouperKeepUnmapped(t *testing.T) {
	recs := []*AlignmentRecord{testUnmapped("F1", 0), testUnmapped("F1", 1)}
	g := NewGrouper(NewSliceScanner(recs), nil, false)
	groups := readGroups(t, g)
	assert.NoError(t, g.Err())
	assert.EQ(t, len(groups), 1)
	expect.EQ(t, groups[0].class, Discordant)
}

func TestGrouperNonAdjacent(t *testing.T) {
	fw := genemodel.Forward
	recs := []*AlignmentRecord{
		testRec("F1", 0, "chr1", 100, 150, 0, fw, ""),
		testRec("F2", 0, "chr1", 100, 150, 0, fw, ""),
		testRec("F1", 1, "chr1", 100, 150, 0, fw, ""),
	}
	g := NewGrouper(NewSliceScanner(recs), nil, true)
	groups := readGroups(t, g)
	assert.NoError(t, g.Err())
	// Each run of records is its own group; nothing is remembered across
	// fragments.
	expect.EQ(t, groups, []testGroup{
		{frag: "F1", n0: 1, class: SingleUnmapped, refsOfMate: [2][]int{{0}, nil}},
		{frag: "F2", n0: 1, class: SingleUnmapped, refsOfMate: [2][]int{{0}, nil}},
		{frag: "F1", n1: 1, class: SingleUnmapped, refsOfMate: [2][]int{nil, {0}}},
	})
	expect.EQ(t, g.Stats(), Stats{Fragments: 3, Alignments: 3})
}

func TestGrouperInvalidMate(t *testing.T) {
	r := testRec("F1", 0, "chr1", 100, 150, 0, genemodel.Forward, "")
	r.Mate = 2
	g := NewGrouper(NewSliceScanner([]*AlignmentRecord{r}), nil, true)
	expect.False(t, g.Scan())
	expect.True(t, errors.Is(errors.Invalid, g.Err()))
}

func TestGrouperEmpty(t *testing.T) {
	g := NewGrouper(NewSliceScanner(nil), nil, true)
	expect.False(t, g.Scan())
	expect.NoError(t, g.Err())
	expect.EQ(t, g.Stats(), Stats{})
}

func TestClassString(t *testing.T) {
	expect.EQ(t, BothUnmapped.String(), "both-unmapped")
	expect.EQ(t, SingleUnmapped.String(), "single-unmapped")
	expect.EQ(t, Discordant.String(), "discordant")
}
