package harvest

import (
	"fmt"
	"net/url"
	"time"
)

// Outcome is the terminal state of one harvested item.
type Outcome string

// Outcome values reported by workers.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Mode selects how a worker executes its batch.
type Mode string

// Supported execution modes.
const (
	ModeSequential Mode = "sync"
	ModeConcurrent Mode = "async"
)

// ParseMode validates a mode string from flags or config.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSequential, ModeConcurrent:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeSequential, ModeConcurrent)
	}
}

// Kind tells the save step how to treat fetched content.
type Kind string

// Content kinds.
const (
	KindText   Kind = "text"
	KindBinary Kind = "binary"
)

// Task is one unit of work pulled from the queue. A sentinel task carries no
// item and tells the receiving worker that no more work is coming.
type Task struct {
	ID       string
	Sentinel bool
}

// NewTask wraps an item identifier as a real task.
func NewTask(id string) Task {
	return Task{ID: id}
}

// SentinelTask returns the distinguished shutdown task. The coordinator
// enqueues exactly one per worker.
func SentinelTask() Task {
	return Task{Sentinel: true}
}

// StatusRecord is the per-item outcome a worker reports to the coordinator.
// Exactly one record exists per real task; sentinels produce none.
type StatusRecord struct {
	Item    string
	Outcome Outcome
	Reason  string
}

// Succeeded builds a success record for an item.
func Succeeded(item string) StatusRecord {
	return StatusRecord{Item: item, Outcome: OutcomeSuccess}
}

// Failed builds a failure record carrying the reason.
func Failed(item, reason string) StatusRecord {
	return StatusRecord{Item: item, Outcome: OutcomeFailure, Reason: reason}
}

// Tally accumulates run results on the coordinator side.
type Tally struct {
	Succeeded int
	Failed    int
}

// Total returns the number of observed records.
func (t Tally) Total() int {
	return t.Succeeded + t.Failed
}

// Summary renders the final run line, e.g. "success: 2/3, failure: 1/3".
func (t Tally) Summary() string {
	n := t.Total()
	return fmt.Sprintf("success: %d/%d, failure: %d/%d", t.Succeeded, n, t.Failed, n)
}

// Target is one fetchable URL produced by a strategy for an item.
type Target struct {
	URL   string
	Kind  Kind
	Query url.Values
}

// FetchRequest captures everything needed for one GET.
type FetchRequest struct {
	URL   string
	Query url.Values
	Kind  Kind
}

// FetchResponse is returned by a Fetcher on success (HTTP 200).
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}
