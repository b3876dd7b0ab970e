package payload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openrev/rqcbridge/host"
	"github.com/openrev/rqcbridge/opting"
)

// Builder assembles DeliveryPayloads from host records.
type Builder struct {
	submissions host.SubmissionStore
	reviews     host.ReviewStore
	decisions   host.DecisionStore
	settings    host.SettingsStore
	opting      *opting.Service
	logger      *slog.Logger
}

// NewBuilder creates a payload builder over the host's read interfaces.
func NewBuilder(
	submissions host.SubmissionStore,
	reviews host.ReviewStore,
	decisions host.DecisionStore,
	settings host.SettingsStore,
	optingSvc *opting.Service,
	logger *slog.Logger,
) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		submissions: submissions,
		reviews:     reviews,
		decisions:   decisions,
		settings:    settings,
		opting:      optingSvc,
		logger:      logger,
	}
}

// Build constructs the delivery payload for a submission's latest review
// round. interactiveUser is the triggering user's email for explicit calls,
// empty for background redelivery.
//
// Build degrades gracefully: missing optional data (no authors, no review
// form, no decision yet) produces a smaller payload, and collaborator
// failures on optional sections become diagnostics instead of errors. Only a
// missing submission is an error. Build performs no network I/O.
func (b *Builder) Build(ctx context.Context, submissionID int64, interactiveUser string) (*DeliveryPayload, []string, error) {
	sub, err := b.submissions.Get(ctx, submissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("payload: get submission %d: %w", submissionID, err)
	}
	return b.BuildFrom(ctx, sub, interactiveUser)
}

// BuildFrom is Build for an already-fetched submission record.
func (b *Builder) BuildFrom(ctx context.Context, sub *host.SubmissionRecord, interactiveUser string) (*DeliveryPayload, []string, error) {
	var diags []string

	p := &DeliveryPayload{
		InteractiveUser:   interactiveUser,
		SubmissionPageURL: sub.PageURL,
		VisibleID:         fmt.Sprintf("%s-%d", sub.JournalPath, sub.ID),
		ExternalID:        fmt.Sprintf("%s-%d-R%d", sub.JournalPath, sub.ID, sub.Round),
		Title:             capLine(sub.Title, "title", &diags),
		SubmittedAt:       fmtTime(sub.SubmittedAt),
		Authors:           []AuthorEntry{},
		Editors:           []EditorEntry{},
		Reviews:           []ReviewEntry{},
	}

	p.Authors = b.buildAuthors(sub, &diags)
	p.Editors = b.buildEditors(sub, &diags)
	p.Reviews = b.buildReviews(ctx, sub, &diags)
	p.Decision = b.resolveDecision(ctx, sub, &diags)

	if err := ValidateSchema(p); err != nil {
		diags = append(diags, fmt.Sprintf("payload failed schema validation: %v", err))
	}

	return p, diags, nil
}

func (b *Builder) buildAuthors(sub *host.SubmissionRecord, diags *[]string) []AuthorEntry {
	entries := make([]AuthorEntry, 0, len(sub.Authors))
	for _, a := range sub.Authors {
		entries = append(entries, AuthorEntry{
			Email:           a.Email,
			FirstName:       capLine(a.FirstName, "author firstname", diags),
			LastName:        capLine(a.LastName, "author lastname", diags),
			ORCID:           a.ORCID,
			Order:           a.Order,
			IsCorresponding: a.IsCorresponding,
		})
	}
	return capList(entries, MaxAuthors, "author_set", diags)
}

func (b *Builder) buildEditors(sub *host.SubmissionRecord, diags *[]string) []EditorEntry {
	entries := make([]EditorEntry, 0, len(sub.Editors))
	for _, e := range sub.Editors {
		level := e.Level
		if level < 1 {
			level = 1
		}
		entries = append(entries, EditorEntry{
			Level:     level,
			Email:     e.Email,
			FirstName: capLine(e.FirstName, "editor firstname", diags),
			LastName:  capLine(e.LastName, "editor lastname", diags),
			ORCID:     e.ORCID,
		})
	}
	entries = capList(entries, MaxEditors, "edassgmt_set", diags)

	// The service requires a level-1 (deciding) editor whenever any editor
	// is listed.
	if len(entries) > 0 && !hasLevelOne(entries) {
		entries[0].Level = 1
		*diags = append(*diags, "no level-1 editor assigned; promoted the first assignment")
	}
	return entries
}

func hasLevelOne(entries []EditorEntry) bool {
	for _, e := range entries {
		if e.Level == 1 {
			return true
		}
	}
	return false
}

func (b *Builder) buildReviews(ctx context.Context, sub *host.SubmissionRecord, diags *[]string) []ReviewEntry {
	assignments, err := b.reviews.Assignments(ctx, sub.ID, sub.RoundID)
	if err != nil {
		*diags = append(*diags, fmt.Sprintf("review assignments unavailable: %v", err))
		return []ReviewEntry{}
	}

	entries := make([]ReviewEntry, 0, len(assignments))
	for i, a := range assignments {
		entry := ReviewEntry{
			VisibleID:         fmt.Sprintf("R%d", i+1),
			InvitedAt:         fmtTime(a.InvitedAt),
			AgreedAt:          fmtTime(a.AgreedAt),
			SubmittedAt:       fmtTime(a.SubmittedAt),
			SuggestedDecision: mapRecommendation(a.Recommendation),
			Attachments:       []AttachmentEntry{},
			Reviewer: ReviewerIdentity{
				Email:     a.Email,
				FirstName: a.FirstName,
				LastName:  a.LastName,
				ORCID:     a.ORCID,
			},
		}

		// Text extraction happens before the opting check so that an
		// opted-out reviewer's text is discarded together with the
		// identity, never captured on its own.
		entry.Text = capText(b.reviewText(ctx, a, diags), fmt.Sprintf("review %s text", entry.VisibleID), diags)
		for _, att := range a.Attachments {
			entry.Attachments = append(entry.Attachments, AttachmentEntry{
				FileName: att.FileName,
				URL:      att.URL,
			})
		}

		optedOut, err := b.opting.IsOptedOut(ctx, sub.ContextID, a.ReviewerID)
		if err != nil {
			// Resolution failure is treated as opted out: withholding an
			// identity is recoverable, disclosing one is not.
			*diags = append(*diags, fmt.Sprintf("opting status unavailable for review %s: %v", entry.VisibleID, err))
			optedOut = true
		}
		if optedOut {
			b.redact(ctx, sub.ContextID, &entry, diags)
		}

		entries = append(entries, entry)
	}

	return capList(entries, MaxReviews, "review_set", diags)
}

// reviewText extracts the review text using the strategy matching the
// assignment: structured form responses when a form was used, submitted
// peer-review comments otherwise.
func (b *Builder) reviewText(ctx context.Context, a host.ReviewAssignmentRecord, diags *[]string) string {
	if a.FormID != 0 {
		elements, err := b.reviews.FormElements(ctx, a.AssignmentID)
		if err != nil {
			*diags = append(*diags, fmt.Sprintf("form elements unavailable for assignment %d: %v", a.AssignmentID, err))
			return ""
		}
		return extractFormText(elements)
	}

	comments, err := b.reviews.Comments(ctx, a.AssignmentID)
	if err != nil {
		*diags = append(*diags, fmt.Sprintf("comments unavailable for assignment %d: %v", a.AssignmentID, err))
		return ""
	}
	return extractCommentText(comments)
}

// redact replaces the reviewer's identity with the journal's deterministic
// pseudonym and clears the review text and attachments.
func (b *Builder) redact(ctx context.Context, contextID int64, entry *ReviewEntry, diags *[]string) {
	salt, err := b.journalSalt(ctx, contextID)
	if err != nil {
		*diags = append(*diags, fmt.Sprintf("pseudonym salt unavailable: %v", err))
		salt = "" // still redact; an unstable pseudonym beats a disclosed identity
	}

	entry.Reviewer = ReviewerIdentity{
		Email: opting.Pseudonym(entry.Reviewer.Email, salt),
	}
	entry.Text = ""
	entry.IsHTML = false
	entry.Attachments = []AttachmentEntry{}
}

// journalSalt returns the journal's pseudonym salt, generating and
// persisting it on first use.
func (b *Builder) journalSalt(ctx context.Context, contextID int64) (string, error) {
	salt, err := b.settings.GetSetting(ctx, contextID, host.SettingSalt)
	if err != nil {
		return "", err
	}
	if salt != "" {
		return salt, nil
	}

	salt = opting.GenerateSalt()
	if err := b.settings.PutSetting(ctx, contextID, host.SettingSalt, salt); err != nil {
		return "", err
	}

	b.logger.DebugContext(ctx, "generated pseudonym salt", "context_id", contextID)
	return salt, nil
}

func (b *Builder) resolveDecision(ctx context.Context, sub *host.SubmissionRecord, diags *[]string) string {
	records, err := b.decisions.Decisions(ctx, sub.ID, sub.RoundID)
	if err != nil {
		*diags = append(*diags, fmt.Sprintf("decisions unavailable: %v", err))
		return ""
	}
	return ResolveDecision(records)
}

// fmtTime renders a host timestamp as ISO-8601 UTC, or "" for the zero time.
func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
