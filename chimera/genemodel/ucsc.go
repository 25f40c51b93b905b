package genemodel

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// UCSCPublicDSN is the data source name of the public UCSC MySQL server. The
// database name is appended by the caller, e.g. UCSCPublicDSN + "hg38".
const UCSCPublicDSN = "genome@tcp(genome-mysql.soe.ucsc.edu:3306)/"

var tableNameRE = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// genePredRow is one row of a UCSC genePredExt table (e.g., knownGene joined
// with kgXref, refGene, ncbiRefSeq, wgEncodeGencodeBasicV38).
type genePredRow struct {
	name, name2, chrom, strand string
	txStart, txEnd             int
	exonStarts, exonEnds       []byte
}

func (row *genePredRow) feature() (Feature, error) {
	strand, err := ParseStrand(row.strand)
	if err != nil {
		return Feature{}, err
	}
	exons, err := exonsFromLists(string(row.exonStarts), string(row.exonEnds))
	if err != nil {
		return Feature{}, err
	}
	f := Feature{
		TxName:   row.name,
		GeneName: row.name2,
		Chrom:    row.chrom,
		Strand:   strand,
		TxStart:  row.txStart,
		TxEnd:    row.txEnd,
		Exons:    exons,
	}
	if f.GeneName == "" {
		f.GeneName = f.TxName
	}
	return f, f.Validate()
}

// ImportUCSC reads transcripts from a genePred-style table. The table must
// have the columns name, name2, chrom, strand, txStart, txEnd, exonStarts, and
// exonEnds. The caller owns db and must have registered the SQL driver.
func ImportUCSC(ctx context.Context, db *sql.DB, table string) ([]Feature, error) {
	if !tableNameRE.MatchString(table) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("invalid UCSC table name '%s'", table))
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.E(errors.Unavailable, "ucsc ping", err)
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		"SELECT name, name2, chrom, strand, txStart, txEnd, exonStarts, exonEnds FROM %s", table))
	if err != nil {
		return nil, errors.E(err, "ucsc query", table)
	}
	defer rows.Close() // nolint: errcheck
	var (
		features []Feature
		row      genePredRow
	)
	for rows.Next() {
		if err := rows.Scan(&row.name, &row.name2, &row.chrom, &row.strand,
			&row.txStart, &row.txEnd, &row.exonStarts, &row.exonEnds); err != nil {
			return nil, errors.E(err, "ucsc scan", table)
		}
		f, err := row.feature()
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("ucsc table %s, transcript %s", table, row.name), err)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(err, "ucsc rows", table)
	}
	SortFeatures(features)
	log.Printf("Imported %d transcripts from UCSC table %s", len(features), table)
	return features, nil
}
