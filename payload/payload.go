// Package payload builds the wire document describing a submission's peer
// review for delivery to the RQC grading service.
//
// Construction applies hard size limits and the reviewer-privacy rules:
// list sections are capped, free-text fields are length-limited, and
// reviewers with an opt-out on file appear only under a deterministic
// pseudonymous identity with their review text and attachments cleared.
// Every truncation is reported as a diagnostic; nothing is dropped silently.
// The builder performs no network I/O.
package payload

// DeliveryPayload is the JSON document POSTed to the grading service for one
// submission and review round.
type DeliveryPayload struct {
	// InteractiveUser is the email of the user triggering an explicit
	// delivery, or empty for background calls.
	InteractiveUser string `json:"interactive_user"`

	// SubmissionPageURL is where the grading service sends editors back to.
	SubmissionPageURL string `json:"mhs_submissionpage"`

	// VisibleID is the human-facing submission identifier.
	VisibleID string `json:"visible_uid"`

	// ExternalID is the round-qualified submission identifier.
	ExternalID string `json:"external_uid"`

	Title       string `json:"title"`
	SubmittedAt string `json:"submitted"`

	Authors  []AuthorEntry `json:"author_set"`
	Editors  []EditorEntry `json:"edassgmt_set"`
	Reviews  []ReviewEntry `json:"review_set"`
	Decision string        `json:"decision"`
}

// AuthorEntry is one submission author, in submission order.
type AuthorEntry struct {
	Email           string `json:"email"`
	FirstName       string `json:"firstname"`
	LastName        string `json:"lastname"`
	ORCID           string `json:"orcid_id,omitempty"`
	Order           int    `json:"order_number"`
	IsCorresponding bool   `json:"is_corresponding"`
}

// EditorEntry is one editor assignment. Level 1 marks the editor responsible
// for the decision; at least one entry carries level 1 whenever the set is
// non-empty.
type EditorEntry struct {
	Level     int    `json:"level"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	ORCID     string `json:"orcid_id,omitempty"`
}

// ReviewEntry is one review, with identity fields already resolved against
// the reviewer's opting status.
type ReviewEntry struct {
	// VisibleID identifies the review within the submission (e.g. "R2").
	VisibleID string `json:"visible_id"`

	InvitedAt   string `json:"invited,omitempty"`
	AgreedAt    string `json:"agreed,omitempty"`
	SubmittedAt string `json:"submitted,omitempty"`

	// Text is the extracted review text. Empty when the reviewer opted out.
	Text   string `json:"text"`
	IsHTML bool   `json:"is_html"`

	SuggestedDecision string `json:"suggested_decision"`

	Attachments []AttachmentEntry `json:"attachment_set"`

	Reviewer ReviewerIdentity `json:"reviewer"`
}

// ReviewerIdentity is the identity block of a review entry. For an opted-out
// reviewer, Email is a pseudo-address and the remaining fields are empty.
type ReviewerIdentity struct {
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	ORCID     string `json:"orcid_id,omitempty"`
}

// AttachmentEntry is one file a reviewer attached to a review.
type AttachmentEntry struct {
	FileName string `json:"filename"`
	URL      string `json:"url"`
}
