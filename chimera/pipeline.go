package chimera

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

const invalidSeq = math.MaxUint64

// nominateReq is a discordant fragment sent to a nomination worker. seq is the
// position of the fragment in the input, used to restore the input order.
type nominateReq struct {
	seq   uint64
	group MateGroup
}

type nominateRes struct {
	seq        uint64
	candidates []Candidate

	// stats is sent as the very last record, with seq=invalidSeq.
	stats Stats
}

func nominateRequests(reqCh chan nominateReq, resCh chan nominateRes, nom *Nominator, opts Opts, errs *errors.Once) {
	stats := Stats{}
	for req := range reqCh {
		if errs.Err() != nil {
			continue
		}
		best0, err := SelectBestHits(req.group.Mates[0], opts.MismatchTolerance)
		if err != nil {
			errs.Set(errors.E(err, "fragment", req.group.FragmentID))
			continue
		}
		best1, err := SelectBestHits(req.group.Mates[1], opts.MismatchTolerance)
		if err != nil {
			errs.Set(errors.E(err, "fragment", req.group.FragmentID))
			continue
		}
		if c := nom.Nominate(req.group.FragmentID, best0, best1, &stats); len(c) > 0 {
			resCh <- nominateRes{seq: req.seq, candidates: c}
		}
	}
	resCh <- nominateRes{seq: invalidSeq, stats: stats}
}

// NominateAll reads fragments from sc and nominates chimera candidates from
// the discordant ones. Alignments on contamRefIDs are ignored. Fragments are
// nominated by opts.Parallelism goroutines, but the candidates are returned in
// input order, so the result doesn't depend on the parallelism.
func NominateAll(ctx context.Context, sc AlignmentScanner, contamRefIDs map[int]bool, nom *Nominator, opts Opts) ([]Candidate, Stats, error) {
	var (
		reqCh = make(chan nominateReq, 1024*4)
		resCh = make(chan nominateRes, 1024)
		errs  errors.Once
		wg1   sync.WaitGroup
	)
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	for i := 0; i < parallelism; i++ {
		wg1.Add(1)
		go func() {
			nominateRequests(reqCh, resCh, nom, opts, &errs)
			wg1.Done()
		}()
	}

	wg2 := sync.WaitGroup{}
	wg2.Add(1)
	var (
		results     []nominateRes
		workerStats Stats
	)
	go func() {
		for res := range resCh {
			if res.seq == invalidSeq {
				workerStats = workerStats.Merge(res.stats)
				continue
			}
			results = append(results, res)
		}
		wg2.Done()
	}()

	var (
		g     = NewGrouper(sc, contamRefIDs, opts.RemoveUnmapped)
		stats Stats
		seq   uint64
	)
loop:
	for g.Scan() {
		if errs.Err() != nil {
			break
		}
		if err := ctx.Err(); err != nil {
			errs.Set(err)
			break
		}
		group := g.Group()
		if n := g.Stats().Fragments; n%(1024*1024) == 0 {
			log.Debug.Printf("Processed %dMi fragments", n/(1024*1024))
		}
		switch Classify(group) {
		case BothUnmapped:
			stats.BothUnmapped++
			continue
		case SingleUnmapped:
			stats.SingleUnmapped++
			continue
		}
		stats.Discordant++
		select {
		case reqCh <- nominateReq{seq: seq, group: *group}:
			seq++
		case <-ctx.Done():
			errs.Set(ctx.Err())
			break loop
		}
	}
	errs.Set(g.Err())
	close(reqCh)
	wg1.Wait()
	close(resCh)
	wg2.Wait()
	if err := errs.Err(); err != nil {
		return nil, Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].seq < results[j].seq })
	var candidates []Candidate
	for _, res := range results {
		candidates = append(candidates, res.candidates...)
	}
	gs := g.Stats()
	stats.Fragments, stats.Alignments = gs.Fragments, gs.Alignments
	stats = stats.Merge(workerStats)
	log.Printf("Stats: nomination: %+v", stats)
	return candidates, stats, nil
}

// Aggregate clusters the candidates and produces the sorted report rows.
func Aggregate(candidates []Candidate, clusters *GeneClusters, txmap *TranscriptMap, opts Opts) ([]ReportRow, error) {
	a := NewAggregator(clusters, txmap, opts)
	for _, c := range candidates {
		if err := a.Add(c); err != nil {
			return nil, err
		}
	}
	return a.Finalize()
}
