// Package opting manages reviewer consent decisions and the pseudonymous
// identities substituted for reviewers who opted out.
//
// A reviewer's decision is recorded per journal and per calendar year, with a
// preliminary (saved-for-later) sub-state that does not yet count as a
// decision. The effective status for a submission is resolved once, at
// review-collection time, and is immutable for that submission's payload.
package opting

import (
	"time"

	"github.com/openrev/rqcbridge/id"
	"github.com/openrev/rqcbridge/internal/entity"
)

// Status is a reviewer's consent decision.
type Status string

const (
	// StatusUnknown means no decision is on file.
	StatusUnknown Status = "unknown"

	// StatusIn means the reviewer consented to identity disclosure.
	StatusIn Status = "in"

	// StatusOut means the reviewer declined identity disclosure.
	StatusOut Status = "out"
)

// Record is one reviewer's consent decision for a journal and calendar year.
type Record struct {
	entity.Entity

	// ID is the unique TypeID for this record.
	ID id.ID `json:"id"`

	// ContextID is the host journal the decision applies to.
	ContextID int64 `json:"context_id"`

	// ReviewerID is the host's user id for the reviewer.
	ReviewerID int64 `json:"reviewer_id"`

	// Year is the calendar year the decision covers.
	Year int `json:"year"`

	// Status is the recorded decision.
	Status Status `json:"status"`

	// Preliminary marks a saved-for-later decision that is not yet final.
	Preliminary bool `json:"preliminary"`
}

// EffectiveAt reports whether this record decides the reviewer's status at
// the given time. Preliminary records never decide; records for other years
// never decide.
func (r *Record) EffectiveAt(at time.Time) bool {
	return !r.Preliminary && r.Status != StatusUnknown && r.Year == at.UTC().Year()
}
