// Package host declares the read interfaces and record shapes through which
// rqcbridge consumes the journal-management application's data.
//
// The host application owns submissions, review assignments, editorial
// decisions, and per-journal settings. rqcbridge never writes through these
// interfaces except for the settings store, which also holds the plugin's
// own per-journal configuration (API key, RQC journal id, pseudonym salt).
package host

import (
	"context"
	"time"
)

// SubmissionRecord is the read-only view of a submission that payload
// construction needs.
type SubmissionRecord struct {
	ID          int64
	ContextID   int64
	JournalPath string
	Title       string
	SubmittedAt time.Time
	PageURL     string
	RoundID     int64
	Round       int

	Authors []AuthorRecord
	Editors []EditorAssignment
}

// AuthorRecord is one submission author, in submission order.
type AuthorRecord struct {
	Email           string
	FirstName       string
	LastName        string
	ORCID           string
	Order           int
	IsCorresponding bool
}

// EditorAssignment is one editor assigned to a submission. Level 1 marks the
// editor responsible for the editorial decision.
type EditorAssignment struct {
	Email     string
	FirstName string
	LastName  string
	ORCID     string
	Level     int
}

// ReviewAssignmentRecord is one reviewer's assignment for a review round.
type ReviewAssignmentRecord struct {
	AssignmentID int64
	ReviewerID   int64
	Email        string
	FirstName    string
	LastName     string
	ORCID        string

	InvitedAt   time.Time
	AgreedAt    time.Time
	SubmittedAt time.Time

	// Recommendation is the reviewer's suggested decision, host-coded.
	Recommendation Recommendation

	// FormID is non-zero when the review used a structured review form.
	FormID int64

	Attachments []AttachmentRecord
}

// AttachmentRecord is one file a reviewer attached to a review.
type AttachmentRecord struct {
	FileName string
	URL      string
}

// Recommendation is the host's coding of a reviewer's suggestion.
type Recommendation int

// Reviewer recommendation codes, matching the host application's constants.
const (
	RecommendationNone           Recommendation = 0
	RecommendationAccept         Recommendation = 1
	RecommendationMinorRevisions Recommendation = 2
	RecommendationMajorRevisions Recommendation = 3
	RecommendationResubmit       Recommendation = 4
	RecommendationDecline        Recommendation = 5
	RecommendationSeeComments    Recommendation = 6
)

// FormElementKind distinguishes review form element types. Only text-bearing
// kinds contribute to the extracted review text.
type FormElementKind int

// Review form element kinds.
const (
	ElementSmallText FormElementKind = iota + 1
	ElementTextArea
	ElementCheckboxes
	ElementRadioButtons
	ElementDropdown
)

// IsText reports whether the element kind carries free text.
func (k FormElementKind) IsText() bool {
	return k == ElementSmallText || k == ElementTextArea
}

// FormElementRecord is one element of a structured review form together with
// the reviewer's response.
type FormElementRecord struct {
	Kind        FormElementKind
	Label       string
	Description string
	Response    string
}

// CommentKind distinguishes submission comment types. Only peer-review
// comments contribute to free-text review extraction.
type CommentKind int

// Submission comment kinds, matching the host application's constants.
const (
	CommentPeerReview CommentKind = iota + 1
	CommentEditorDecision
	CommentCopyedit
)

// CommentRecord is one comment a reviewer entered for a submission.
type CommentRecord struct {
	Kind     CommentKind
	Comments string
	Viewable bool
	PostedAt time.Time
}

// DecisionRecord is one editorial decision or recommendation for a round.
type DecisionRecord struct {
	Decision  Decision
	DecidedAt time.Time
}

// Decision is the host's coding of an editorial decision.
type Decision int

// Editorial decision codes, matching the host application's constants.
// Recommendation variants are advisory entries written by section editors
// and do not themselves decide the submission.
const (
	DecisionNone              Decision = 0
	DecisionAccept            Decision = 1
	DecisionPendingRevisions  Decision = 2
	DecisionResubmit          Decision = 3
	DecisionDecline           Decision = 4
	DecisionRecommendAccept   Decision = 11
	DecisionRecommendPending  Decision = 12
	DecisionRecommendResubmit Decision = 13
	DecisionRecommendDecline  Decision = 14
)

// IsRecommendation reports whether the code is advisory rather than an
// actual decision.
func (d Decision) IsRecommendation() bool {
	return d >= DecisionRecommendAccept && d <= DecisionRecommendDecline
}

// SubmissionStore reads submission records from the host.
type SubmissionStore interface {
	// Get returns the submission with its authors and editor assignments.
	Get(ctx context.Context, submissionID int64) (*SubmissionRecord, error)
}

// ReviewStore reads review assignments and their content from the host.
type ReviewStore interface {
	// Assignments returns the review assignments for a round, in reviewer order.
	Assignments(ctx context.Context, submissionID, roundID int64) ([]ReviewAssignmentRecord, error)

	// FormElements returns the structured form responses for an assignment.
	// Empty when the assignment's form has no responses.
	FormElements(ctx context.Context, assignmentID int64) ([]FormElementRecord, error)

	// Comments returns the free-text comments a reviewer entered for an
	// assignment, oldest first.
	Comments(ctx context.Context, assignmentID int64) ([]CommentRecord, error)
}

// DecisionStore reads editorial decisions from the host.
type DecisionStore interface {
	// Decisions returns the decision records for a round, oldest first.
	Decisions(ctx context.Context, submissionID, roundID int64) ([]DecisionRecord, error)
}
