package chimera

// Stats represents high-level statistics of one nomination run. It is
// returned by value from the pipeline; there are no process-wide counters.
type Stats struct {
	// Fragments is the number of fragments (read pairs) read.
	Fragments int
	// Alignments is the number of alignment records that survived the
	// contaminant and unmapped filters.
	Alignments int
	// BothUnmapped counts fragments where neither mate has an alignment.
	BothUnmapped int
	// SingleUnmapped counts fragments where exactly one mate has an alignment.
	SingleUnmapped int
	// Discordant counts fragments where both mates have alignments.
	Discordant int
	// TruncatedFragments counts discordant fragments whose hit-pair cross
	// product exceeded Opts.MaxCandidatesPerFragment.
	TruncatedFragments int
	// UnresolvedPairs counts hit pairs dropped because one of the mates
	// didn't land inside annotated exons.
	UnresolvedPairs int
	// OrientationMismatches counts transcript pairs dropped because both mates
	// had the same orientation relative to their transcripts.
	OrientationMismatches int
	// Candidates is the number of chimera candidates nominated.
	Candidates int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Fragments += o.Fragments
	s.Alignments += o.Alignments
	s.BothUnmapped += o.BothUnmapped
	s.SingleUnmapped += o.SingleUnmapped
	s.Discordant += o.Discordant
	s.TruncatedFragments += o.TruncatedFragments
	s.UnresolvedPairs += o.UnresolvedPairs
	s.OrientationMismatches += o.OrientationMismatches
	s.Candidates += o.Candidates
	return s
}
