package tts

import "sync/atomic"

// Progress tracks chunk completion for one conversion. Total is fixed
// at segmentation time; Processed counts chunks that reached a
// terminal state (success or failure) and Failed counts the failures
// among them. Counters only ever go up.
type Progress struct {
	total     int64
	processed atomic.Int64
	failed    atomic.Int64
}

// NewProgress creates a Progress for the given chunk count.
func NewProgress(total int) *Progress {
	return &Progress{total: int64(total)}
}

// MarkSuccess records one chunk finishing with audio.
func (p *Progress) MarkSuccess() {
	p.processed.Add(1)
}

// MarkFailure records one chunk finishing with an error.
func (p *Progress) MarkFailure() {
	p.processed.Add(1)
	p.failed.Add(1)
}

// Done reports whether every chunk has reached a terminal state.
func (p *Progress) Done() bool {
	return p.processed.Load() >= p.total
}

// Snapshot returns a point-in-time copy of the counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Total:     p.total,
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// ProgressSnapshot is an immutable view of conversion progress.
type ProgressSnapshot struct {
	Total     int64 `json:"total"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}
