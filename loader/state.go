// Package loader implements the two bulk-ingest sinks described in
// SPEC_FULL.md §4.6: a tabular loader writing LOAD-DATA-style batches to a
// relational store, and a search loader issuing bulk-document requests to a
// search index. Both share the same Empty -> Accumulating -> Flushing ->
// Empty/Terminated batch lifecycle, implemented once here.
package loader

// phase names the batch lifecycle state.
type phase int

const (
	phaseEmpty phase = iota
	phaseAccumulating
	phaseFlushing
	phaseTerminated
)

// batchState tracks one loader's progress through its batch lifecycle and
// how many of its declared producers have signaled end-of-stream. A loader
// reaches Terminated only once every producer's sentinel has been observed,
// so a fan-out of N upstream workers writing into one shared input channel
// is drained completely before the loader exits.
type batchState struct {
	phase     phase
	count     int
	producers int
	sentinels int
}

func newBatchState(producers int) *batchState {
	return &batchState{producers: producers}
}

// add records one more buffered record and reports whether threshold has
// been reached.
func (b *batchState) add(threshold int) bool {
	b.phase = phaseAccumulating
	b.count++
	return b.count >= threshold
}

func (b *batchState) beginFlush() { b.phase = phaseFlushing }

// endFlush resets the accumulation count and moves to Terminated if every
// producer sentinel has already been observed, otherwise back to Empty.
func (b *batchState) endFlush() {
	b.count = 0
	if b.sentinels >= b.producers {
		b.phase = phaseTerminated
	} else {
		b.phase = phaseEmpty
	}
}

// sentinel records one producer's end-of-stream signal and reports whether
// every producer has now signaled.
func (b *batchState) sentinel() bool {
	b.sentinels++
	return b.sentinels >= b.producers
}
