package genemodel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// featureRow is one line of a gene-feature file:
//
//   tx_name gene_name chrom tx_start tx_end strand exon_count exon_starts exon_ends
//
// exon_starts and exon_ends are comma-separated lists, optionally with a
// trailing comma, as in UCSC genePred tables.
type featureRow struct {
	TxName     string
	GeneName   string
	Chrom      string
	TxStart    int
	TxEnd      int
	Strand     string
	ExonCount  int
	ExonStarts string
	ExonEnds   string
}

// parseCoordList parses "100,200,300," into {100,200,300}.
func parseCoordList(s string) ([]int, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ",")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	v := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		v[i] = n
	}
	return v, nil
}

// exonsFromLists zips exon start and end lists into intervals.
func exonsFromLists(starts, ends string) ([]Interval, error) {
	s, err := parseCoordList(starts)
	if err != nil {
		return nil, err
	}
	e, err := parseCoordList(ends)
	if err != nil {
		return nil, err
	}
	if len(s) != len(e) {
		return nil, fmt.Errorf("%d exon starts but %d exon ends", len(s), len(e))
	}
	exons := make([]Interval, len(s))
	for i := range s {
		exons[i] = Interval{s[i], e[i]}
	}
	return exons, nil
}

func (row *featureRow) feature() (Feature, error) {
	strand, err := ParseStrand(row.Strand)
	if err != nil {
		return Feature{}, err
	}
	exons, err := exonsFromLists(row.ExonStarts, row.ExonEnds)
	if err != nil {
		return Feature{}, err
	}
	if len(exons) != row.ExonCount {
		return Feature{}, fmt.Errorf("exon_count is %d, but found %d exons", row.ExonCount, len(exons))
	}
	f := Feature{
		TxName:   row.TxName,
		GeneName: row.GeneName,
		Chrom:    row.Chrom,
		Strand:   strand,
		TxStart:  row.TxStart,
		TxEnd:    row.TxEnd,
		Exons:    exons,
	}
	return f, f.Validate()
}

// ParseFeatures reads a gene-feature file. Lines starting with '#' are
// ignored. Any malformed row fails the whole read. The name is used only in
// error messages.
func ParseFeatures(in io.Reader, name string) ([]Feature, error) {
	r := tsv.NewReader(in)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	var (
		features []Feature
		row      featureRow
	)
	for nLine := 1; ; nLine++ {
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d", name, nLine), err)
		}
		f, err := row.feature()
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d", name, nLine), err)
		}
		features = append(features, f)
	}
	return features, nil
}

// ReadFeatures reads a gene-feature file. The file may be compressed.
func ReadFeatures(ctx context.Context, path string) (features []Feature, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open gene features", path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	var inr io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(inr, in.Name()); u != nil {
		inr = u
	}
	if features, err = ParseFeatures(bufio.NewReaderSize(inr, 64<<10), path); err != nil {
		return nil, err
	}
	log.Printf("Read %d transcripts from %s", len(features), path)
	return features, nil
}

func joinCoords(exons []Interval, end bool) string {
	buf := strings.Builder{}
	for _, e := range exons {
		v := e.Start
		if end {
			v = e.End
		}
		buf.WriteString(strconv.Itoa(v))
		buf.WriteByte(',')
	}
	return buf.String()
}

// WriteFeatures writes features in the format read by ParseFeatures.
func WriteFeatures(out io.Writer, features []Feature) error {
	w := tsv.NewWriter(out)
	w.WriteString("#tx_name\tgene_name\tchrom\ttx_start\ttx_end\tstrand\texon_count\texon_starts\texon_ends")
	if err := w.EndLine(); err != nil {
		return err
	}
	for i := range features {
		f := &features[i]
		w.WriteString(f.TxName)
		w.WriteString(f.GeneName)
		w.WriteString(f.Chrom)
		w.WriteInt64(int64(f.TxStart))
		w.WriteInt64(int64(f.TxEnd))
		w.WriteString(f.Strand.String())
		w.WriteInt64(int64(len(f.Exons)))
		w.WriteString(joinCoords(f.Exons, false))
		w.WriteString(joinCoords(f.Exons, true))
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteFeaturesFile writes features to the given path.
func WriteFeaturesFile(ctx context.Context, path string, features []Feature) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	e := errors.Once{}
	e.Set(WriteFeatures(out.Writer(ctx), features))
	e.Set(out.Close(ctx))
	if err = e.Err(); err == nil {
		log.Printf("Wrote %d transcripts to %s", len(features), path)
	}
	return err
}
