// Package alignio reads SAM and BAM files as a stream of chimera alignment
// records.
package alignio

import (
	"context"
	"io"
	"runtime"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/chimera/chimera"
	"github.com/grailbio/chimera/chimera/genemodel"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// FileType represents the type of an alignment file.
type FileType int

const (
	// BAM file
	BAM FileType = iota
	// SAM file, possibly compressed
	SAM
)

// GuessFileType returns the file type from the pathname. A path ending in
// ".sam" or ".sam.gz" is SAM, anything else is BAM.
func GuessFileType(path string) FileType {
	if strings.HasSuffix(path, ".sam") || strings.HasSuffix(path, ".sam.gz") {
		return SAM
	}
	return BAM
}

var nmTag = sam.Tag{'N', 'M'}

// RecordReader is the subset of *sam.Reader and *bam.Reader used by Scanner.
type RecordReader interface {
	Read() (*sam.Record, error)
}

// Scanner converts sam.Records into chimera.AlignmentRecords. It implements
// chimera.AlignmentScanner. The input must be grouped by read name, e.g.,
// the unsorted output of an aligner.
type Scanner struct {
	r      RecordReader
	header *sam.Header
	rec    *chimera.AlignmentRecord
	err    error

	// Set by Open. br is nil for SAM input.
	in file.File
	br *bam.Reader
}

// NewScanner creates a scanner that reads from r. Header is the header of
// the underlying file. It is used to resolve reference names.
func NewScanner(r RecordReader, header *sam.Header) *Scanner {
	return &Scanner{r: r, header: header}
}

// Open opens a SAM or BAM file, as determined by GuessFileType. The caller
// must Close the scanner.
func Open(ctx context.Context, path string) (*Scanner, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open alignments", path)
	}
	var (
		r      RecordReader
		br     *bam.Reader
		header *sam.Header
		inr    io.Reader = in.Reader(ctx)
	)
	if GuessFileType(path) == SAM {
		vlog.VI(1).Infof("%v: reading as SAM", path)
		if u := compress.NewReaderPath(inr, in.Name()); u != nil {
			inr = u
		}
		sr, err := sam.NewReader(inr)
		if err != nil {
			in.Close(ctx) // nolint: errcheck
			return nil, errors.E(errors.Invalid, err, "open SAM", path)
		}
		r, header = sr, sr.Header()
	} else {
		vlog.VI(1).Infof("%v: reading as BAM", path)
		br, err = bam.NewReader(inr, runtime.NumCPU())
		if err != nil {
			in.Close(ctx) // nolint: errcheck
			return nil, errors.E(errors.Invalid, err, "open BAM", path)
		}
		r, header = br, br.Header()
	}
	s := NewScanner(r, header)
	s.in, s.br = in, br
	return s, nil
}

// Header returns the SAM header of the input.
func (s *Scanner) Header() *sam.Header { return s.header }

// Scan reads the next record. It returns false on EOF or error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	r, err := s.r.Read()
	if err != nil {
		if err != io.EOF {
			s.err = errors.E(err, "read alignment")
		}
		s.rec = nil
		return false
	}
	if s.rec, s.err = Convert(r); s.err != nil {
		s.rec = nil
		return false
	}
	return true
}

// Record returns the record read by the last call to Scan.
func (s *Scanner) Record() *chimera.AlignmentRecord { return s.rec }

// Err returns the first error encountered by Scan, if any.
func (s *Scanner) Err() error { return s.err }

// Close closes the BAM decoder and the file opened by Open. It is a noop for
// scanners created by NewScanner, and on repeated calls.
func (s *Scanner) Close(ctx context.Context) error {
	once := errors.Once{}
	if s.br != nil {
		once.Set(s.br.Close())
		s.br = nil
	}
	if s.in != nil {
		once.Set(s.in.Close(ctx))
		s.in = nil
	}
	return once.Err()
}

// Convert translates one SAM record.
func Convert(r *sam.Record) (*chimera.AlignmentRecord, error) {
	rec := &chimera.AlignmentRecord{
		FragmentID: r.Name,
		RefID:      -1,
		Strand:     genemodel.Forward,
	}
	if r.Flags&sam.Read2 != 0 {
		rec.Mate = 1
	}
	if r.Flags&sam.Reverse != 0 {
		rec.Strand = genemodel.Reverse
	}
	if r.Seq.Length > 0 {
		rec.Seq = string(r.Seq.Expand())
	}
	if r.Flags&sam.Unmapped != 0 || r.Ref == nil || r.Ref.ID() < 0 {
		return rec, nil
	}
	rec.Mapped = true
	rec.RefID = r.Ref.ID()
	rec.RefName = r.Ref.Name()
	rec.Intervals = cigarIntervals(r.Pos, r.Cigar)
	if len(rec.Intervals) == 0 {
		return nil, errors.E(errors.Invalid, "alignment", r.Name, "has no aligned bases")
	}
	if aux := r.AuxFields.Get(nmTag); aux != nil {
		nm, ok := intValue(aux.Value())
		if !ok {
			return nil, errors.E(errors.Invalid, "alignment", r.Name, "has a non-integer NM tag")
		}
		rec.Mismatches = nm
	}
	return rec, nil
}

// cigarIntervals computes the reference segments covered by an alignment
// starting at pos. Skipped regions (N) split segments.
func cigarIntervals(pos int, cigar sam.Cigar) []genemodel.Interval {
	var (
		intervals []genemodel.Interval
		start     = pos
	)
	for _, op := range cigar {
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarDeletion:
			pos += op.Len()
		case sam.CigarSkipped:
			if pos > start {
				intervals = append(intervals, genemodel.Interval{Start: start, End: pos})
			}
			pos += op.Len()
			start = pos
		}
	}
	if pos > start {
		intervals = append(intervals, genemodel.Interval{Start: start, End: pos})
	}
	return intervals
}

func intValue(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int8:
		return int(x), true
	case uint8:
		return int(x), true
	case int16:
		return int(x), true
	case uint16:
		return int(x), true
	case int32:
		return int(x), true
	case uint32:
		return int(x), true
	case int:
		return x, true
	}
	return 0, false
}

// RefNames lists the reference names of the header, indexed by reference
// ID.
func RefNames(header *sam.Header) []string {
	refs := header.Refs()
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name()
	}
	return names
}

// ResolveContaminants maps contaminant reference names to reference IDs.
func ResolveContaminants(header *sam.Header, names []string) (map[int]bool, error) {
	ids := map[int]bool{}
	if len(names) == 0 {
		return ids, nil
	}
	byName := map[string]int{}
	for _, ref := range header.Refs() {
		byName[ref.Name()] = ref.ID()
	}
	for _, name := range names {
		id, ok := byName[name]
		if !ok {
			return nil, errors.E(errors.NotExist, "contaminant reference", name, "not found in alignment header")
		}
		ids[id] = true
	}
	return ids, nil
}
