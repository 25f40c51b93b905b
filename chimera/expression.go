package chimera

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// Columns of the exon expression table. The value of an exon is the sum of
// the two expression columns.
const (
	exprGeneCol  = 0
	exprExonCol  = 1
	exprValueCol = 7
	exprNumCols  = 9
)

type exonExpr struct {
	exonNum int
	value   float64
}

// ExpressionTable holds per-exon expression values of genes.
type ExpressionTable struct {
	// genes maps a gene name to its exons, sorted by exon number.
	genes map[string][]exonExpr
}

// ParseExpressionTable reads a tab-separated exon expression table. Each row
// is "gene exon_num ... expr_a expr_b", where expr_a and expr_b are at
// columns 7 and 8 (zero-based). Lines starting with '#' are ignored. If a
// (gene, exon) appears more than once, the last row wins.
func ParseExpressionTable(in io.Reader, name string) (*ExpressionTable, error) {
	r := tsv.NewReader(in)
	r.Comment = '#'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	byGene := map[string]map[int]float64{}
	for nLine := 1; ; nLine++ {
		row, err := r.Reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d", name, nLine), err)
		}
		if len(row) < exprNumCols {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: expect at least %d columns, found %d", name, nLine, exprNumCols, len(row)))
		}
		exonNum, err := strconv.Atoi(row[exprExonCol])
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: exon number", name, nLine), err)
		}
		a, err := strconv.ParseFloat(row[exprValueCol], 64)
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: column %d", name, nLine, exprValueCol), err)
		}
		b, err := strconv.ParseFloat(row[exprValueCol+1], 64)
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: column %d", name, nLine, exprValueCol+1), err)
		}
		exons, ok := byGene[row[exprGeneCol]]
		if !ok {
			exons = map[int]float64{}
			byGene[row[exprGeneCol]] = exons
		}
		exons[exonNum] = a + b
	}
	t := &ExpressionTable{genes: make(map[string][]exonExpr, len(byGene))}
	for gene, exons := range byGene {
		sorted := make([]exonExpr, 0, len(exons))
		for n, v := range exons {
			sorted = append(sorted, exonExpr{n, v})
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].exonNum < sorted[j].exonNum })
		t.genes[gene] = sorted
	}
	return t, nil
}

// ReadExpressionTable reads a (possibly compressed) expression table file.
func ReadExpressionTable(ctx context.Context, path string) (t *ExpressionTable, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open expression table", path)
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
	if t, err = ParseExpressionTable(bufio.NewReaderSize(inr, 64<<10), path); err != nil {
		return nil, err
	}
	log.Printf("Read expression of %d genes from %s", len(t.genes), path)
	return t, nil
}

// Gene returns the expression values of the gene, ordered by exon number.
func (t *ExpressionTable) Gene(gene string) ([]float64, bool) {
	if t == nil {
		return nil, false
	}
	exons, ok := t.genes[gene]
	if !ok {
		return nil, false
	}
	v := make([]float64, len(exons))
	for i, e := range exons {
		v[i] = e.value
	}
	return v, true
}

// Exon returns the expression of the given exon of the gene.
func (t *ExpressionTable) Exon(gene string, exonNum int) (float64, bool) {
	if t == nil {
		return 0, false
	}
	exons := t.genes[gene]
	i := sort.Search(len(exons), func(i int) bool { return exons[i].exonNum >= exonNum })
	if i == len(exons) || exons[i].exonNum != exonNum {
		return 0, false
	}
	return exons[i].value, true
}

// NumGenes returns the number of genes in the table.
func (t *ExpressionTable) NumGenes() int {
	if t == nil {
		return 0
	}
	return len(t.genes)
}
