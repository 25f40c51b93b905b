package genemodel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// GTFOpts controls ReadGTF.
type GTFOpts struct {
	// CodingOnly keeps only transcripts with a coding biotype.
	CodingOnly bool
	// KeepMitochondrial keeps transcripts on chrM.
	KeepMitochondrial bool
}

// genomicRange is a closed range, as used in GTF files.
type genomicRange struct {
	start, stop int
}

type genomicRanges []genomicRange

// merge appends r to g. If the last range in g overlaps or touches r, they are
// merged instead.
func (g *genomicRanges) merge(r genomicRange) {
	if n := len(*g); n > 0 {
		last := &(*g)[n-1]
		if r.start <= last.stop+1 && last.start <= r.stop+1 {
			if r.start < last.start {
				last.start = r.start
			}
			if r.stop > last.stop {
				last.stop = r.stop
			}
			return
		}
	}
	*g = append(*g, r)
}

// collapse sorts the ranges and merges the overlapping ones.
func (g *genomicRanges) collapse() {
	sort.SliceStable(*g, func(i, j int) bool {
		return (*g)[i].start < (*g)[j].start ||
			((*g)[i].start == (*g)[j].start && (*g)[i].stop < (*g)[j].stop)
	})
	merged := genomicRanges{}
	for _, r := range *g {
		merged.merge(r)
	}
	*g = merged
}

type gtfGene struct {
	geneID   string
	geneName string
	chrom    string
	strand   string
}

type gtfTranscript struct {
	gene           *gtfGene
	transcriptID   string
	transcriptType string
	start, stop    int
	exons          genomicRanges
}

// parseInfoFields parses the attribute column of a GTF record into key/value
// pairs. parsedInfo is cleared first.
func parseInfoFields(parsedInfo map[string]string, info string) error {
	for k := range parsedInfo {
		delete(parsedInfo, k)
	}
	for _, field := range strings.Split(strings.TrimSpace(info), ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		sp := strings.IndexByte(field, ' ')
		if sp < 0 {
			return fmt.Errorf("malformed attribute '%s'", field)
		}
		parsedInfo[field[:sp]] = strings.Trim(strings.TrimSpace(field[sp+1:]), "\"")
	}
	return nil
}

// gtfRecord stores one line of a GTF file.
type gtfRecord struct {
	Chrom    string
	Source   string
	Molecule string
	Start    int
	Stop     int
	Score    string // unused floating point value, but may be "."
	Strand   string
	Frame    string
	Fields   string
}

// Obtained from https://www.gencodegenes.org/gencode_biotypes.html
var codingBiotypes = map[string]bool{
	"protein_coding":          true,
	"nonsense_mediated_decay": true,
	"non_stop_decay":          true,
	"IG_C_gene":               true,
	"IG_D_gene":               true,
	"IG_J_gene":               true,
	"IG_LV_gene":              true,
	"IG_V_gene":               true,
	"TR_C_gene":               true,
	"TR_J_gene":               true,
	"TR_V_gene":               true,
	"TR_D_gene":               true,
	"polymorphic_pseudogene":  true,
}

// ParseGTF reads GTF records and converts each transcript into a Feature.
// GTF coordinates (one-based, closed) are converted to zero-based half-open.
// The features are sorted by (chrom, start, name).
func ParseGTF(in io.Reader, name string, opts GTFOpts) ([]Feature, error) {
	scanner := tsv.NewReader(in)
	scanner.Comment = '#'
	scanner.LazyQuotes = true
	scanner.FieldsPerRecord = -1

	var (
		genes       = map[string]*gtfGene{}
		transcripts = map[string]*gtfTranscript{}
		fields      = map[string]string{}
		line        gtfRecord
		nExons      int
	)
	// GENCODE lists gene, then its transcripts, then their exons, but other
	// producers omit the gene and transcript lines. Missing parents are
	// created from the exon attributes.
	getGene := func(rec *gtfRecord) *gtfGene {
		id := fields["gene_id"]
		g, ok := genes[id]
		if !ok {
			g = &gtfGene{geneID: id, chrom: rec.Chrom, strand: rec.Strand}
			genes[id] = g
		}
		if n := fields["gene_name"]; n != "" {
			g.geneName = n
		}
		return g
	}
	getTranscript := func(rec *gtfRecord) *gtfTranscript {
		id := fields["transcript_id"]
		tr, ok := transcripts[id]
		if !ok {
			tr = &gtfTranscript{gene: getGene(rec), transcriptID: id, start: rec.Start, stop: rec.Stop}
			transcripts[id] = tr
		}
		if t := fields["transcript_type"]; t != "" {
			tr.transcriptType = t
		}
		return tr
	}
	for nLine := 1; ; nLine++ {
		if err := scanner.Read(&line); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d", name, nLine), err)
		}
		if err := parseInfoFields(fields, line.Fields); err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d", name, nLine), err)
		}
		switch line.Molecule {
		case "gene":
			getGene(&line)
		case "transcript":
			tr := getTranscript(&line)
			tr.start, tr.stop = line.Start, line.Stop
		case "exon":
			if fields["transcript_id"] == "" {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: exon without transcript_id", name, nLine))
			}
			tr := getTranscript(&line)
			tr.exons = append(tr.exons, genomicRange{line.Start, line.Stop})
			nExons++
		}
	}
	log.Printf("GTF %s: read %d genes, %d transcripts, %d exons", name, len(genes), len(transcripts), nExons)

	features := make([]Feature, 0, len(transcripts))
	var nSkipped int
	for _, tr := range transcripts {
		if len(tr.exons) == 0 ||
			(opts.CodingOnly && !codingBiotypes[tr.transcriptType]) ||
			(!opts.KeepMitochondrial && tr.gene.chrom == "chrM") {
			nSkipped++
			continue
		}
		strand, err := ParseStrand(tr.gene.strand)
		if err != nil {
			return nil, errors.E(err, name, tr.transcriptID)
		}
		tr.exons.collapse()
		f := Feature{
			TxName:   tr.transcriptID,
			GeneName: tr.gene.geneName,
			Chrom:    tr.gene.chrom,
			Strand:   strand,
			TxStart:  tr.start - 1,
			TxEnd:    tr.stop,
		}
		if f.GeneName == "" {
			f.GeneName = tr.gene.geneID
		}
		for _, e := range tr.exons {
			f.Exons = append(f.Exons, Interval{e.start - 1, e.stop})
		}
		// Transcript lines are optional; the exons define the extent when the
		// two disagree.
		if first := f.Exons[0].Start; first < f.TxStart {
			f.TxStart = first
		}
		if last := f.Exons[len(f.Exons)-1].End; last > f.TxEnd {
			f.TxEnd = last
		}
		if err := f.Validate(); err != nil {
			return nil, errors.E(err, name)
		}
		features = append(features, f)
	}
	SortFeatures(features)
	log.Printf("GTF %s: retained %d transcripts, skipped %d", name, len(features), nSkipped)
	return features, nil
}

// ReadGTF reads a (possibly compressed) GTF file. See ParseGTF.
func ReadGTF(ctx context.Context, path string, opts GTFOpts) (features []Feature, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open GTF", path)
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
	return ParseGTF(bufio.NewReaderSize(inr, 64<<10), path, opts)
}
