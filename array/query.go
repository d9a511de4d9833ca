package array

import (
	"fmt"

	"github.com/hupe1980/tilestore/status"
)

// Status is a query's lifecycle state (spec.md S:4.6).
type Status uint8

const (
	Uninitialized Status = iota
	InProgress
	Incomplete
	Completed
	Failed
)

// String returns the status's canonical name.
func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case InProgress:
		return "INPROGRESS"
	case Incomplete:
		return "INCOMPLETE"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// canSubmit reports whether submit() may be called from s.
func (s Status) canSubmit() bool {
	return s == Uninitialized || s == Incomplete
}

// Query tracks one read (or write) operation's progress across
// potentially multiple submissions, resuming an INCOMPLETE read exactly
// where the previous submission's output buffer ran out of room.
type Query struct {
	status Status

	// resumeCellIdx is the index, into the flat ordered point/cell list a
	// Read recomputes each submission, of the next cell to produce.
	// resumeTileIdx is always set to 0 by Read and is not consulted.
	resumeTileIdx int
	resumeCellIdx int
}

// NewQuery returns a fresh, UNINITIALIZED query.
func NewQuery() *Query {
	return &Query{status: Uninitialized}
}

// Status returns the query's current status.
func (q *Query) Status() Status { return q.status }

// submit transitions UNINITIALIZED/INCOMPLETE -> INPROGRESS, as the
// precondition for beginning (or resuming) a read.
func (q *Query) submit() error {
	if !q.status.canSubmit() {
		return status.New(status.CategoryQueryError, fmt.Sprintf("query: cannot submit from status %s", q.status))
	}
	q.status = InProgress
	return nil
}

func (q *Query) markIncomplete(tileIdx, cellIdx int) {
	q.resumeTileIdx, q.resumeCellIdx = tileIdx, cellIdx
	q.status = Incomplete
}

func (q *Query) markCompleted() {
	q.resumeTileIdx, q.resumeCellIdx = 0, 0
	q.status = Completed
}

func (q *Query) markFailed() {
	q.status = Failed
}
