// internal/service/transcript.go
package service

import (
	"sync"

	"serial-terminal/internal/model"
)

// Transcript is the in-memory display log. Records are numbered from 1 in
// the order they were rendered; the oldest are dropped once the cap is hit.
type Transcript struct {
	mu      sync.RWMutex
	records []model.Record
	lastSeq uint64
	max     int
}

// NewTranscript creates a transcript holding at most max records (0 = no cap)
func NewTranscript(max int) *Transcript {
	return &Transcript{max: max}
}

// Append numbers recs in place and stores them
func (t *Transcript) Append(recs []model.Record) {
	if len(recs) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range recs {
		t.lastSeq++
		recs[i].Seq = t.lastSeq
	}
	t.records = append(t.records, recs...)

	if t.max > 0 && len(t.records) > t.max {
		drop := len(t.records) - t.max
		n := copy(t.records, t.records[drop:])
		clear(t.records[n:])
		t.records = t.records[:n]
	}
}

// Since returns up to limit records with Seq > after, oldest first.
// limit <= 0 means no limit.
func (t *Transcript) Since(after uint64, limit int) []model.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	// Seq values are contiguous, so the start index follows from the first one
	start := 0
	if len(t.records) > 0 && after >= t.records[0].Seq {
		start = int(after - t.records[0].Seq + 1)
	}
	if start >= len(t.records) {
		return []model.Record{}
	}

	end := len(t.records)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	out := make([]model.Record, end-start)
	copy(out, t.records[start:end])
	return out
}

// Len returns the number of retained records
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// LastSeq returns the sequence number of the newest record, 0 if none
func (t *Transcript) LastSeq() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastSeq
}
