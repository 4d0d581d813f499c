package metrics

import "sync/atomic"

// RunProgress tracks how far the current generation run has come. The
// pipeline updates it and the host collector reports it next to system usage.
type RunProgress struct {
	chunks        atomic.Int64
	totalChunks   atomic.Int64
	regionsOK     atomic.Int64
	regionsFailed atomic.Int64
	totalRegions  atomic.Int64
}

// Run is the progress of the generation run in this process
var Run = &RunProgress{}

// RunSnapshot is a point-in-time copy of RunProgress
type RunSnapshot struct {
	Chunks, TotalChunks                    int64
	RegionsOK, RegionsFailed, TotalRegions int64
}

// Begin resets the counters for a run over the given totals
func (r *RunProgress) Begin(totalChunks, totalRegions int64) {
	r.chunks.Store(0)
	r.regionsOK.Store(0)
	r.regionsFailed.Store(0)
	r.totalChunks.Store(totalChunks)
	r.totalRegions.Store(totalRegions)
	ProgressRatio.Set(0)
}

// AddChunks records n more encoded chunks
func (r *RunProgress) AddChunks(n int) {
	done := r.chunks.Add(int64(n))
	ChunksEncoded.Add(float64(n))
	if total := r.totalChunks.Load(); total > 0 {
		ProgressRatio.Set(float64(done) / float64(total))
	}
}

// FinishRegion records one region outcome
func (r *RunProgress) FinishRegion(ok bool) {
	if ok {
		r.regionsOK.Add(1)
		RegionsFinished.WithLabelValues("ok").Inc()
		return
	}
	r.regionsFailed.Add(1)
	RegionsFinished.WithLabelValues("failed").Inc()
}

// Snapshot returns the current counters
func (r *RunProgress) Snapshot() RunSnapshot {
	return RunSnapshot{
		Chunks:        r.chunks.Load(),
		TotalChunks:   r.totalChunks.Load(),
		RegionsOK:     r.regionsOK.Load(),
		RegionsFailed: r.regionsFailed.Load(),
		TotalRegions:  r.totalRegions.Load(),
	}
}
