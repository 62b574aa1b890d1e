package cover

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates the terminal outcomes of one fetch attempt.
type AttemptStatus string

const (
	StatusPending                AttemptStatus = "PENDING"
	StatusSuccess                AttemptStatus = "SUCCESS"
	StatusSkippedBadURL          AttemptStatus = "SKIPPED_BAD_URL"
	StatusFailureNotFound        AttemptStatus = "FAILURE_NOT_FOUND"
	StatusFailureNoURLInResponse AttemptStatus = "FAILURE_NO_URL_IN_RESPONSE"
	StatusFailureInvalidDetails  AttemptStatus = "FAILURE_INVALID_DETAILS"
	StatusFailureGeneric         AttemptStatus = "FAILURE_GENERIC"
	StatusFailureGenericDownload AttemptStatus = "FAILURE_GENERIC_DOWNLOAD"
)

// Terminal reports whether the status is a final outcome.
func (s AttemptStatus) Terminal() bool {
	return s != StatusPending
}

// Attempt records one fetch attempt against one provider. It is created
// PENDING and completed exactly once with a terminal status.
type Attempt struct {
	Provider   Source
	Locator    string // identifier or URL the attempt was issued for
	Status     AttemptStatus
	Reason     string
	FetchedURL string
	Dimensions string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ProvenanceLog owns the ordered attempts of one resolution request. It is
// created per request and discarded with it; background completion appends
// from another goroutine, so access is guarded.
type ProvenanceLog struct {
	RequestID string
	ItemID    string

	mu       sync.Mutex
	attempts []*Attempt
}

// NewProvenanceLog creates an empty log for one resolution request.
func NewProvenanceLog(itemID string) *ProvenanceLog {
	return &ProvenanceLog{
		RequestID: uuid.NewString(),
		ItemID:    itemID,
	}
}

// Begin appends a new PENDING attempt and returns it for later completion.
// Attempts appear in the log in the order they were issued.
func (p *ProvenanceLog) Begin(provider Source, locator string) *Attempt {
	a := &Attempt{
		Provider:  provider,
		Locator:   locator,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
	p.mu.Lock()
	p.attempts = append(p.attempts, a)
	p.mu.Unlock()
	return a
}

// Complete moves the attempt to a terminal status. Completing an already
// terminal attempt is a no-op so a record is mutated exactly once.
func (p *ProvenanceLog) Complete(a *Attempt, status AttemptStatus, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a.Status.Terminal() {
		return
	}
	a.Status = status
	a.Reason = reason
	a.FinishedAt = time.Now()
}

// CompleteSuccess marks the attempt successful and records what was fetched.
func (p *ProvenanceLog) CompleteSuccess(a *Attempt, fetchedURL, dimensions string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a.Status.Terminal() {
		return
	}
	a.Status = StatusSuccess
	a.FetchedURL = fetchedURL
	a.Dimensions = dimensions
	a.FinishedAt = time.Now()
}

// Attempts returns a snapshot of the recorded attempts in issue order.
func (p *ProvenanceLog) Attempts() []Attempt {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Attempt, len(p.attempts))
	for i, a := range p.attempts {
		out[i] = *a
	}
	return out
}

// Len returns the number of recorded attempts.
func (p *ProvenanceLog) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.attempts)
}
