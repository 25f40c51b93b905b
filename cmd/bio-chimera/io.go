package main

// This file defines candidateWriter and candidateReader. candidateWriter
// dumps the nominated chimera candidates, together with the gene model and
// options used to produce them, into a recordio file. candidateReader reads
// them back so that the aggregation phase can run without the alignments.

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/chimera/chimera"
	"github.com/grailbio/chimera/chimera/genemodel"
)

const (
	// <fileVersionHeader, fileVersion> is stored in a recordio header.
	fileVersionHeader = "chimeraversion"
	fileVersion       = "CHIMERA_V1"
)

// candidateFileTrailer is stored in the trailer section of the recordio file.
type candidateFileTrailer struct {
	// Opts is the list of options used to generate the candidates.
	Opts chimera.Opts
	// Stats are the nomination counters.
	Stats chimera.Stats
	// Features is the gene model the candidates were resolved against.
	Features []genemodel.Feature
}

func encodeGOB(v interface{}) ([]byte, error) {
	b := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(b).Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decodeGOB(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

type candidateWriter struct {
	out  file.File
	w    recordio.Writer
	path string
}

func newCandidateWriter(ctx context.Context, path string) (*candidateWriter, error) {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "rio create", path)
	}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(fileVersionHeader, fileVersion)
	w.AddHeader(recordio.KeyTrailer, true)
	return &candidateWriter{out: out, w: w, path: path}, nil
}

// Write adds a candidate.
func (w *candidateWriter) Write(c chimera.Candidate) error {
	data, err := encodeGOB(c)
	if err != nil {
		return errors.E(err, "encode candidate", c.ID)
	}
	w.w.Append(data)
	return nil
}

// Close writes the trailer and closes the file. It must be called exactly
// once, after writing all the candidates.
func (w *candidateWriter) Close(ctx context.Context, trailer candidateFileTrailer) error {
	once := errors.Once{}
	data, err := encodeGOB(trailer)
	once.Set(err)
	if err == nil {
		w.w.SetTrailer(data)
	}
	once.Set(w.w.Finish())
	once.Set(w.out.Close(ctx))
	if err := once.Err(); err != nil {
		return errors.E(err, "rio close", w.path)
	}
	return nil
}

// candidateReader reads a file created by candidateWriter.
type candidateReader struct {
	in      file.File
	r       recordio.Scanner
	path    string
	trailer candidateFileTrailer

	c   chimera.Candidate // last candidate read by Scan.
	err error
}

func newCandidateReader(ctx context.Context, path string) (*candidateReader, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "rio open", path)
	}
	recordiozstd.Init()
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	fail := func(err error) (*candidateReader, error) {
		in.Close(ctx) // nolint: errcheck
		return nil, err
	}
	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == fileVersionHeader {
			if v, ok := kv.Value.(string); !ok || v != fileVersion {
				return fail(errors.E(errors.Invalid, path,
					fmt.Sprintf("candidate file version mismatch, got %v, expect %v", kv.Value, fileVersion)))
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		if err := r.Err(); err != nil {
			return fail(errors.E(err, "rio open", path))
		}
		return fail(errors.E(errors.Invalid, path, fileVersionHeader+" not found"))
	}
	rd := &candidateReader{in: in, r: r, path: path}
	if err := decodeGOB(r.Trailer(), &rd.trailer); err != nil {
		return fail(errors.E(errors.Invalid, err, "decode trailer", path))
	}
	return rd, nil
}

// Trailer returns the options, stats, and gene model stored in the file.
// It can be called any time.
func (r *candidateReader) Trailer() candidateFileTrailer { return r.trailer }

// Scan reads the next candidate.
func (r *candidateReader) Scan() bool {
	if r.err != nil || !r.r.Scan() {
		return false
	}
	r.c = chimera.Candidate{}
	if err := decodeGOB(r.r.Get().([]byte), &r.c); err != nil {
		r.err = errors.E(errors.Invalid, err, "decode candidate", r.path)
		return false
	}
	return true
}

// Get yields the current candidate.
//
// REQUIRES: Last Scan call returned true.
func (r *candidateReader) Get() chimera.Candidate { return r.c }

// Close closes the reader and reports any error encountered while scanning.
func (r *candidateReader) Close(ctx context.Context) error {
	once := errors.Once{}
	once.Set(r.err)
	once.Set(r.r.Err())
	once.Set(r.in.Close(ctx))
	return once.Err()
}
