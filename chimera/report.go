package chimera

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
)

var reportColumns = []string{
	"#chrom5p", "start5p", "end5p", "strand5p",
	"chrom3p", "start3p", "end3p", "strand3p",
	"transcript_ids_5p", "transcript_ids_3p",
	"genes5p", "genes3p",
	"type", "distance",
	"multimap_weighted_cov",
	"total_frags", "spanning_frags",
	"unique_alignment_positions",
	"unique_spanning_alignment_positions",
	"breakpoint_spanning_reads",
	"chimera_ids",
}

// WriteReport writes rows as a tab-separated table with a header line.
func WriteReport(out io.Writer, rows []ReportRow) error {
	w := tsv.NewWriter(out)
	for _, col := range reportColumns {
		w.WriteString(col)
	}
	if err := w.EndLine(); err != nil {
		return err
	}
	for i := range rows {
		r := &rows[i]
		w.WriteString(r.Chrom5p)
		w.WriteInt64(int64(r.Start5p))
		w.WriteInt64(int64(r.End5p))
		w.WriteString(r.Strand5p.String())
		w.WriteString(r.Chrom3p)
		w.WriteInt64(int64(r.Start3p))
		w.WriteInt64(int64(r.End3p))
		w.WriteString(r.Strand3p.String())
		w.WriteString(strings.Join(r.Transcripts5p, ","))
		w.WriteString(strings.Join(r.Transcripts3p, ","))
		w.WriteString(strings.Join(r.Genes5p, ","))
		w.WriteString(strings.Join(r.Genes3p, ","))
		w.WriteString(r.Type)
		if r.Distance < 0 {
			w.WriteString("NA")
		} else {
			w.WriteInt64(int64(r.Distance))
		}
		w.WriteString(strconv.FormatFloat(r.WeightedCov, 'f', -1, 64))
		w.WriteInt64(int64(r.TotalFrags))
		w.WriteInt64(int64(r.SpanningFrags))
		w.WriteInt64(int64(r.UniqueAlignmentPositions))
		w.WriteInt64(int64(r.UniqueSpanningPositions))
		w.WriteString(strings.Join(r.SpanningReads, ","))
		w.WriteString(strings.Join(r.ChimeraIDs, ","))
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteReportFile writes the report to path. If the path ends with ".gz", the
// file is gzip-compressed.
func WriteReportFile(ctx context.Context, path string, rows []ReportRow) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create report", path)
	}
	e := errors.Once{}
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(out.Writer(ctx))
		e.Set(WriteReport(gz, rows))
		e.Set(gz.Close())
	} else {
		e.Set(WriteReport(out.Writer(ctx), rows))
	}
	e.Set(out.Close(ctx))
	if err := e.Err(); err != nil {
		return errors.E(err, "write report", path)
	}
	log.Printf("Wrote %d chimeras to %s", len(rows), path)
	return nil
}
