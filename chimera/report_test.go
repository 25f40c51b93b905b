package chimera

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/chimera/chimera/genemodel"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

func testReportRows() []ReportRow {
	return []ReportRow{
		{
			Chrom5p: "chr1", Start5p: 150, End5p: 399, Strand5p: genemodel.Forward,
			Chrom3p: "chr2", Start3p: 1250, End3p: 1299, Strand3p: genemodel.Reverse,
			Transcripts5p: []string{"T1:50-99", "T1b:50-99"},
			Transcripts3p: []string{"T2:0-49"},
			Genes5p:       []string{"G1"},
			Genes3p:       []string{"G2"},
			Type:          TypeInterchromosomal,
			Distance:      -1,
			WeightedCov:   1.5,
			TotalFrags:    2, SpanningFrags: 1,
			UniqueAlignmentPositions: 2, UniqueSpanningPositions: 1,
			SpanningReads: []string{">F1/1", "ACGT"},
			ChimeraIDs:    []string{"F1/0", "F2/0"},
		},
		{
			Chrom5p: "chr1", Start5p: 5000, End5p: 5049, Strand5p: genemodel.Forward,
			Chrom3p: "chr1", Start3p: 100, End3p: 139, Strand3p: genemodel.Forward,
			Transcripts5p: []string{"T3:0-49"},
			Transcripts3p: []string{"T1:0-39"},
			Genes5p:       []string{"G3"},
			Genes3p:       []string{"G1"},
			Type:          TypeAdjacent,
			Distance:      4600,
			WeightedCov:   1,
			TotalFrags:    1,
			ChimeraIDs:    []string{"F3/0"},
		},
	}
}

const testReport = "#chrom5p\tstart5p\tend5p\tstrand5p\tchrom3p\tstart3p\tend3p\tstrand3p\t" +
	"transcript_ids_5p\ttranscript_ids_3p\tgenes5p\tgenes3p\ttype\tdistance\t" +
	"multimap_weighted_cov\ttotal_frags\tspanning_frags\tunique_alignment_positions\t" +
	"unique_spanning_alignment_positions\tbreakpoint_spanning_reads\tchimera_ids\n" +
	"chr1\t150\t399\t+\tchr2\t1250\t1299\t-\tT1:50-99,T1b:50-99\tT2:0-49\tG1\tG2\tinterchromosomal\tNA\t" +
	"1.5\t2\t1\t2\t1\t>F1/1,ACGT\tF1/0,F2/0\n" +
	"chr1\t5000\t5049\t+\tchr1\t100\t139\t+\tT3:0-49\tT1:0-39\tG3\tG1\tadjacent\t4600\t" +
	"1\t1\t0\t0\t0\t\tF3/0\n"

func TestWriteReport(t *testing.T) {
	buf := bytes.Buffer{}
	assert.NoError(t, WriteReport(&buf, testReportRows()))
	expect.EQ(t, buf.String(), testReport)
}

func TestWriteReportFile(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(tempDir, "chimeras.txt")
	assert.NoError(t, WriteReportFile(ctx, path, testReportRows()))
	data, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	expect.EQ(t, string(data), testReport)

	gzPath := filepath.Join(tempDir, "chimeras.txt.gz")
	assert.NoError(t, WriteReportFile(ctx, gzPath, testReportRows()))
	f, err := os.Open(gzPath)
	assert.NoError(t, err)
	defer f.Close() // nolint: errcheck
	gz, err := gzip.NewReader(f)
	assert.NoError(t, err)
	data, err = ioutil.ReadAll(gz)
	assert.NoError(t, err)
	expect.EQ(t, string(data), testReport)
	expect.True(t, strings.HasPrefix(string(data), "#chrom5p"))
}
