package pipeline

import (
	"sync/atomic"

	"github.com/joseph-ayodele/receipts-redactor/constants"
)

// Stats are the batch counters. All updates are atomic so workers can share
// one value.
type Stats struct {
	total    atomic.Int64
	success  atomic.Int64
	noMatch  atomic.Int64
	errors   atomic.Int64
	rejected atomic.Int64
	skipped  atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats. Rejected files are also
// counted in Error.
type StatsSnapshot struct {
	Total    int64 `json:"total"`
	Success  int64 `json:"success"`
	NoMatch  int64 `json:"no_match"`
	Error    int64 `json:"error"`
	Rejected int64 `json:"rejected"`
	Skipped  int64 `json:"skipped"`
}

// Record counts one file that reached state.
func (s *Stats) Record(state constants.FileState) { s.Add(state, 1) }

// Add counts n files that reached state.
func (s *Stats) Add(state constants.FileState, n int64) {
	s.total.Add(n)
	switch state {
	case constants.FileStateDone:
		s.success.Add(n)
	case constants.FileStateNoTemplate:
		s.noMatch.Add(n)
	case constants.FileStateRejected:
		s.rejected.Add(n)
		s.errors.Add(n)
	case constants.FileStateSkipped:
		s.skipped.Add(n)
	case constants.FileStateMaskFailed, constants.FileStateError:
		s.errors.Add(n)
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Total:    s.total.Load(),
		Success:  s.success.Load(),
		NoMatch:  s.noMatch.Load(),
		Error:    s.errors.Load(),
		Rejected: s.rejected.Load(),
		Skipped:  s.skipped.Load(),
	}
}
