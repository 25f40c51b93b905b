package main

//
// bio-chimera nominates and clusters chimeric transcripts from paired-end
// RNA-seq alignments against a transcriptome-aware genome.
//
// The application has two phases
//
//   1. read the alignments, group them by fragment, and nominate a chimera
//      candidate for each discordant mate pair that lands in exons of two
//      transcripts. The candidates are optionally dumped to --rio-output.
//
//   2. cluster the candidates by the gene clusters of their partners and
//      write a report to --output.
//
// Example 1: run both phases.
//
//    bio-chimera --alignments=sample.bam --gtf=gencode.v38.gtf.gz --rio-output=sample.rio --output=sample.chimeras.txt
//
// Example 2: run only the 2nd phase using the result from the previous example
//
//    bio-chimera --rio-input=sample.rio --output=sample.chimeras.txt
//
// Example 3: convert a UCSC gene table into a gene feature file
//
//    bio-chimera --ucsc-dsn='genome@tcp(genome-mysql.soe.ucsc.edu:3306)/hg38' --ucsc-table=ncbiRefSeq --write-genes=refseq.txt

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/chimera/chimera"
	"github.com/grailbio/chimera/chimera/genemodel"
	"github.com/grailbio/chimera/encoding/alignio"

	_ "github.com/go-sql-driver/mysql"
)

// Collection of options set via cmdline flags
type chimeraFlags struct {
	alignmentsPath    string
	genesPath         string
	gtfPath           string
	codingOnly        bool
	keepMitochondrial bool
	ucscDSN           string
	ucscTable         string
	expressionPath    string
	contamRefs        string
	rioOutputPath     string
	rioInputPath      string
	outputPath        string
	writeGenesPath    string
}

// loadGeneModel reads the transcripts from exactly one of --genes, --gtf, or
// --ucsc-table.
func loadGeneModel(ctx context.Context, flags chimeraFlags) ([]genemodel.Feature, error) {
	n := 0
	for _, s := range []string{flags.genesPath, flags.gtfPath, flags.ucscTable} {
		if s != "" {
			n++
		}
	}
	if n != 1 {
		return nil, errors.E(errors.Invalid, "exactly one of --genes, --gtf, --ucsc-table must be set")
	}
	switch {
	case flags.genesPath != "":
		return genemodel.ReadFeatures(ctx, flags.genesPath)
	case flags.gtfPath != "":
		return genemodel.ReadGTF(ctx, flags.gtfPath, genemodel.GTFOpts{
			CodingOnly:        flags.codingOnly,
			KeepMitochondrial: flags.keepMitochondrial,
		})
	}
	db, err := sql.Open("mysql", flags.ucscDSN)
	if err != nil {
		return nil, errors.E(err, "ucsc open")
	}
	defer db.Close() // nolint: errcheck
	return genemodel.ImportUCSC(ctx, db, flags.ucscTable)
}

func splitList(s string) []string {
	var l []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			l = append(l, v)
		}
	}
	return l
}

// nominateCandidates runs the 1st phase.
func nominateCandidates(ctx context.Context, flags chimeraFlags, features []genemodel.Feature, opts chimera.Opts) (cands []chimera.Candidate, stats chimera.Stats, err error) {
	if flags.alignmentsPath == "" {
		return nil, stats, errors.E(errors.Invalid, "--alignments must be set")
	}
	var expr *chimera.ExpressionTable
	if flags.expressionPath != "" {
		if expr, err = chimera.ReadExpressionTable(ctx, flags.expressionPath); err != nil {
			return nil, stats, err
		}
	}
	sc, err := alignio.Open(ctx, flags.alignmentsPath)
	if err != nil {
		return nil, stats, err
	}
	defer func() {
		if e := sc.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	contam, err := alignio.ResolveContaminants(sc.Header(), splitList(flags.contamRefs))
	if err != nil {
		return nil, stats, err
	}
	index, err := chimera.NewGeneIntervalIndex(features, alignio.RefNames(sc.Header()), opts.Parallelism)
	if err != nil {
		return nil, stats, err
	}
	log.Printf("Indexed %d exons of %d transcripts", index.NumExons(), index.NumFeatures())
	nom := chimera.NewNominator(index, chimera.NewTranscriptMap(features), expr, opts)
	return chimera.NominateAll(ctx, sc, contam, nom, opts)
}

func writeCandidates(ctx context.Context, path string, cands []chimera.Candidate, trailer candidateFileTrailer) error {
	w, err := newCandidateWriter(ctx, path)
	if err != nil {
		return err
	}
	for _, c := range cands {
		if err := w.Write(c); err != nil {
			w.Close(ctx, trailer) // nolint: errcheck
			return err
		}
	}
	if err := w.Close(ctx, trailer); err != nil {
		return err
	}
	log.Printf("Wrote %d candidates to %s", len(cands), path)
	return nil
}

func readCandidates(ctx context.Context, path string) ([]chimera.Candidate, candidateFileTrailer, error) {
	r, err := newCandidateReader(ctx, path)
	if err != nil {
		return nil, candidateFileTrailer{}, err
	}
	var cands []chimera.Candidate
	for r.Scan() {
		cands = append(cands, r.Get())
	}
	if err := r.Close(ctx); err != nil {
		return nil, candidateFileTrailer{}, errors.E(err, "rio read", path)
	}
	log.Printf("Read %d candidates from %s", len(cands), path)
	return cands, r.Trailer(), nil
}

// DetectChimeras runs both phases, or only the 2nd phase if --rio-input is
// set. The returned error names the stage that failed.
func DetectChimeras(ctx context.Context, flags chimeraFlags, opts chimera.Opts) error {
	if err := opts.Validate(); err != nil {
		return errors.E(err, "options")
	}
	var (
		features   []genemodel.Feature
		candidates []chimera.Candidate
		err        error
	)
	if flags.rioInputPath == "" {
		if features, err = loadGeneModel(ctx, flags); err != nil {
			return errors.E(err, "load gene model")
		}
		if flags.writeGenesPath != "" {
			if err := genemodel.WriteFeaturesFile(ctx, flags.writeGenesPath, features); err != nil {
				return errors.E(err, "write gene model")
			}
			log.Printf("Wrote %d transcripts to %s; exiting because --write-genes is set", len(features), flags.writeGenesPath)
			return nil
		}
		var stats chimera.Stats
		if candidates, stats, err = nominateCandidates(ctx, flags, features, opts); err != nil {
			return errors.E(err, "nominate")
		}
		if flags.rioOutputPath != "" {
			trailer := candidateFileTrailer{Opts: opts, Stats: stats, Features: features}
			if err := writeCandidates(ctx, flags.rioOutputPath, candidates, trailer); err != nil {
				return errors.E(err, "write candidates")
			}
		}
	} else {
		// Read candidates, the gene model, and options from a recordio dump.
		var trailer candidateFileTrailer
		if candidates, trailer, err = readCandidates(ctx, flags.rioInputPath); err != nil {
			return errors.E(err, "read candidates")
		}
		features = trailer.Features
		parallelism := opts.Parallelism
		opts = trailer.Opts
		opts.Parallelism = parallelism
		log.Printf("Stats: nomination (from %s): %+v", flags.rioInputPath, trailer.Stats)
	}
	log.Printf("Stats: %d candidates after stage 1", len(candidates))

	rows, err := chimera.Aggregate(candidates,
		chimera.BuildGeneClusters(features), chimera.NewTranscriptMap(features), opts)
	if err != nil {
		return errors.E(err, "aggregate")
	}
	if err := chimera.WriteReportFile(ctx, flags.outputPath, rows); err != nil {
		return errors.E(err, "write report")
	}
	log.Printf("Stats: %d chimeras written to %s", len(rows), flags.outputPath)
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `
bio-chimera reads paired-end RNA-seq alignments grouped by read name (e.g.,
the unsorted output of an aligner), nominates chimeric transcript candidates
from discordant mate pairs, and writes a tab-separated report of chimeras
clustered by gene.

Usage:
  bio-chimera [flags]

Flags:`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage

	opts := chimera.DefaultOpts
	flags := chimeraFlags{}
	flag.StringVar(&flags.alignmentsPath, "alignments", "", "SAM or BAM file of paired-end alignments, grouped by read name. A path ending in .sam or .sam.gz is read as SAM.")
	flag.StringVar(&flags.genesPath, "genes", "", "Gene feature file, as written by --write-genes.")
	flag.StringVar(&flags.gtfPath, "gtf", "", "GENCODE-style GTF file.")
	flag.BoolVar(&flags.codingOnly, "coding-only", false, "With --gtf, use protein coding transcripts only.")
	flag.BoolVar(&flags.keepMitochondrial, "keep-mitochondrial", false, "With --gtf, keep transcripts on chrM.")
	flag.StringVar(&flags.ucscDSN, "ucsc-dsn", genemodel.UCSCPublicDSN+"hg38", "MySQL data source name of a UCSC genome database. Used with --ucsc-table.")
	flag.StringVar(&flags.ucscTable, "ucsc-table", "", "UCSC genePred table to import transcripts from, e.g., ncbiRefSeq.")
	flag.StringVar(&flags.expressionPath, "expression", "", `Optional per-exon expression table. Used to rank the hit pairs of fragments
with more than --max-candidates-per-fragment candidates.`)
	flag.StringVar(&flags.contamRefs, "contam-refs", "", "Comma-separated list of reference names whose alignments are ignored.")
	flag.StringVar(&flags.rioOutputPath, "rio-output", "", "If nonempty, the stage 1 candidates are written to this recordio file.")
	flag.StringVar(&flags.rioInputPath, "rio-input", "", `If nonempty, bio-chimera will run only the 2nd clustering stage using
the candidates in this file. If empty (default), bio-chimera will run the whole process from scratch.`)
	flag.StringVar(&flags.outputPath, "output", "./chimeras.txt", "Chimera report. A path ending in .gz is compressed.")
	flag.StringVar(&flags.writeGenesPath, "write-genes", "", "If nonempty, write the gene model to this file in the --genes format and exit.")

	libraryType := flag.String("library-type", chimera.DefaultOpts.LibraryType.String(), "Library strandedness, fr or rf.")
	flag.IntVar(&opts.MismatchTolerance, "mismatch-tolerance", chimera.DefaultOpts.MismatchTolerance,
		"Number of mismatches above the best alignment of a mate that still counts as a best alignment.")
	flag.IntVar(&opts.MaxCandidatesPerFragment, "max-candidates-per-fragment", chimera.DefaultOpts.MaxCandidatesPerFragment,
		"Max number of hit pairs nominated for one fragment. Zero means unlimited.")
	flag.IntVar(&opts.MaxAdjacentDistance, "max-adjacent-distance", chimera.DefaultOpts.MaxAdjacentDistance,
		"Partners on the same chromosome and strand closer than this are typed adjacent.")
	flag.IntVar(&opts.Parallelism, "parallelism", chimera.DefaultOpts.Parallelism, "Number of nomination threads.")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	var err error
	if opts.LibraryType, err = chimera.ParseLibraryType(*libraryType); err != nil {
		log.Fatalf("options: %v", err)
	}
	if err := DetectChimeras(ctx, flags, opts); err != nil {
		log.Fatalf("bio-chimera: %v", err)
	}
	log.Printf("All done")
}
