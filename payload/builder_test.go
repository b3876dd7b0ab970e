package payload_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/openrev/rqcbridge/host"
	"github.com/openrev/rqcbridge/opting"
	"github.com/openrev/rqcbridge/payload"
)

// fakeHost implements the host read interfaces plus the settings store
// against in-memory fixtures.
type fakeHost struct {
	submission  *host.SubmissionRecord
	assignments []host.ReviewAssignmentRecord
	elements    map[int64][]host.FormElementRecord
	comments    map[int64][]host.CommentRecord
	decisions   []host.DecisionRecord
	optings     map[string]*opting.Record
	settings    map[string]string

	assignmentsErr error
}

func newFakeHost(sub *host.SubmissionRecord) *fakeHost {
	return &fakeHost{
		submission: sub,
		elements:   make(map[int64][]host.FormElementRecord),
		comments:   make(map[int64][]host.CommentRecord),
		optings:    make(map[string]*opting.Record),
		settings:   make(map[string]string),
	}
}

func (f *fakeHost) Get(_ context.Context, submissionID int64) (*host.SubmissionRecord, error) {
	if f.submission == nil || f.submission.ID != submissionID {
		return nil, fmt.Errorf("submission %d not found", submissionID)
	}
	return f.submission, nil
}

func (f *fakeHost) Assignments(_ context.Context, _, _ int64) ([]host.ReviewAssignmentRecord, error) {
	if f.assignmentsErr != nil {
		return nil, f.assignmentsErr
	}
	return f.assignments, nil
}

func (f *fakeHost) FormElements(_ context.Context, assignmentID int64) ([]host.FormElementRecord, error) {
	return f.elements[assignmentID], nil
}

func (f *fakeHost) Comments(_ context.Context, assignmentID int64) ([]host.CommentRecord, error) {
	return f.comments[assignmentID], nil
}

func (f *fakeHost) Decisions(_ context.Context, _, _ int64) ([]host.DecisionRecord, error) {
	return f.decisions, nil
}

func (f *fakeHost) GetOpting(_ context.Context, contextID, reviewerID int64, year int) (*opting.Record, error) {
	return f.optings[fmt.Sprintf("%d:%d:%d", contextID, reviewerID, year)], nil
}

func (f *fakeHost) PutOpting(_ context.Context, rec *opting.Record) error {
	f.optings[fmt.Sprintf("%d:%d:%d", rec.ContextID, rec.ReviewerID, rec.Year)] = rec
	return nil
}

func (f *fakeHost) GetSetting(_ context.Context, contextID int64, key string) (string, error) {
	return f.settings[fmt.Sprintf("%d:%s", contextID, key)], nil
}

func (f *fakeHost) PutSetting(_ context.Context, contextID int64, key, value string) error {
	f.settings[fmt.Sprintf("%d:%s", contextID, key)] = value
	return nil
}

func baseSubmission() *host.SubmissionRecord {
	return &host.SubmissionRecord{
		ID:          42,
		ContextID:   1,
		JournalPath: "testj",
		Title:       "A Study of Things",
		SubmittedAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		PageURL:     "https://journal.example.org/workflow/42",
		RoundID:     7,
		Round:       2,
		Authors: []host.AuthorRecord{
			{Email: "a@example.org", FirstName: "Ada", LastName: "Author", Order: 1, IsCorresponding: true},
		},
		Editors: []host.EditorAssignment{
			{Email: "e@example.org", FirstName: "Ed", LastName: "Editor", Level: 1},
		},
	}
}

func newBuilder(f *fakeHost) *payload.Builder {
	return payload.NewBuilder(f, f, f, f, opting.NewService(f, nil), nil)
}

func TestBuildBasicPayload(t *testing.T) {
	f := newFakeHost(baseSubmission())
	b := newBuilder(f)

	p, diags, err := b.Build(context.Background(), 42, "editor@example.org")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	if p.InteractiveUser != "editor@example.org" {
		t.Errorf("InteractiveUser = %q", p.InteractiveUser)
	}
	if p.VisibleID != "testj-42" {
		t.Errorf("VisibleID = %q, want testj-42", p.VisibleID)
	}
	if p.ExternalID != "testj-42-R2" {
		t.Errorf("ExternalID = %q, want testj-42-R2", p.ExternalID)
	}
	if p.SubmittedAt != "2026-03-01T10:30:00Z" {
		t.Errorf("SubmittedAt = %q", p.SubmittedAt)
	}
	if len(p.Authors) != 1 || p.Authors[0].Email != "a@example.org" {
		t.Errorf("Authors = %+v", p.Authors)
	}
	if len(p.Editors) != 1 || p.Editors[0].Level != 1 {
		t.Errorf("Editors = %+v", p.Editors)
	}
	if p.Decision != "" {
		t.Errorf("Decision = %q, want empty for undecided round", p.Decision)
	}
}

func TestBuildMissingSubmission(t *testing.T) {
	f := newFakeHost(baseSubmission())
	b := newBuilder(f)

	if _, _, err := b.Build(context.Background(), 999, ""); err == nil {
		t.Fatal("expected error for unknown submission")
	}
}

func TestBuildCapsAuthorList(t *testing.T) {
	sub := baseSubmission()
	sub.Authors = nil
	for i := 0; i < 250; i++ {
		sub.Authors = append(sub.Authors, host.AuthorRecord{
			Email: fmt.Sprintf("a%d@example.org", i),
			Order: i + 1,
		})
	}
	b := newBuilder(newFakeHost(sub))

	p, diags, err := b.Build(context.Background(), 42, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Authors) != payload.MaxAuthors {
		t.Errorf("len(Authors) = %d, want %d", len(p.Authors), payload.MaxAuthors)
	}
	// First entries survive, in order.
	if p.Authors[0].Email != "a0@example.org" {
		t.Errorf("Authors[0].Email = %q", p.Authors[0].Email)
	}

	want := "author_set truncated to fit delivery limits. Original size: 250. Truncated to: 200."
	if !containsDiag(diags, want) {
		t.Errorf("diagnostics %v missing %q", diags, want)
	}
}

func TestBuildTruncatesLongTitle(t *testing.T) {
	sub := baseSubmission()
	sub.Title = strings.Repeat("x", payload.MaxLineChars+500)
	b := newBuilder(newFakeHost(sub))

	p, diags, err := b.Build(context.Background(), 42, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := len([]rune(p.Title)); got != payload.MaxLineChars {
		t.Errorf("len(Title) = %d, want %d", got, payload.MaxLineChars)
	}
	want := fmt.Sprintf("title truncated to fit delivery limits. Original size: %d. Truncated to: %d.",
		payload.MaxLineChars+500, payload.MaxLineChars)
	if !containsDiag(diags, want) {
		t.Errorf("diagnostics %v missing %q", diags, want)
	}
}

func TestBuildPromotesFirstEditorToLevelOne(t *testing.T) {
	sub := baseSubmission()
	sub.Editors = []host.EditorAssignment{
		{Email: "e1@example.org", Level: 3},
		{Email: "e2@example.org", Level: 2},
	}
	b := newBuilder(newFakeHost(sub))

	p, diags, err := b.Build(context.Background(), 42, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Editors[0].Level != 1 {
		t.Errorf("Editors[0].Level = %d, want promoted to 1", p.Editors[0].Level)
	}
	if p.Editors[1].Level != 2 {
		t.Errorf("Editors[1].Level = %d, must stay untouched", p.Editors[1].Level)
	}
	if !containsDiag(diags, "no level-1 editor assigned; promoted the first assignment") {
		t.Errorf("diagnostics %v missing promotion note", diags)
	}
}

func TestBuildReviewFromComments(t *testing.T) {
	sub := baseSubmission()
	f := newFakeHost(sub)
	f.assignments = []host.ReviewAssignmentRecord{
		{
			AssignmentID:   100,
			ReviewerID:     10,
			Email:          "rev@example.org",
			FirstName:      "Rita",
			LastName:       "Reviewer",
			InvitedAt:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			SubmittedAt:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Recommendation: host.RecommendationMinorRevisions,
		},
	}
	f.comments[100] = []host.CommentRecord{
		{Kind: host.CommentPeerReview, Comments: "Solid work overall.", Viewable: true},
		{Kind: host.CommentPeerReview, Comments: "For editor eyes only.", Viewable: false},
		{Kind: host.CommentEditorDecision, Comments: "Decision note.", Viewable: true},
	}
	b := newBuilder(f)

	p, _, err := b.Build(context.Background(), 42, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Reviews) != 1 {
		t.Fatalf("len(Reviews) = %d, want 1", len(p.Reviews))
	}

	r := p.Reviews[0]
	if r.VisibleID != "R1" {
		t.Errorf("VisibleID = %q, want R1", r.VisibleID)
	}
	if r.Text != "Solid work overall." {
		t.Errorf("Text = %q, non-viewable and non-review comments must be excluded", r.Text)
	}
	if r.SuggestedDecision != "MINORREVISION" {
		t.Errorf("SuggestedDecision = %q", r.SuggestedDecision)
	}
	if r.Reviewer.Email != "rev@example.org" {
		t.Errorf("Reviewer.Email = %q, identity must be intact without an opt-out", r.Reviewer.Email)
	}
	if r.AgreedAt != "" {
		t.Errorf("AgreedAt = %q, want empty for zero time", r.AgreedAt)
	}
}

func TestBuildReviewFromForm(t *testing.T) {
	sub := baseSubmission()
	f := newFakeHost(sub)
	f.assignments = []host.ReviewAssignmentRecord{
		{AssignmentID: 100, ReviewerID: 10, Email: "rev@example.org", FormID: 5},
	}
	f.elements[100] = []host.FormElementRecord{
		{Kind: host.ElementTextArea, Label: "Strengths", Response: "Clear methodology."},
		{Kind: host.ElementTextArea, Label: "Confidential comments to the editor", Response: "Reject quietly."},
		{Kind: host.ElementCheckboxes, Label: "Criteria", Response: "a;b"},
		{Kind: host.ElementSmallText, Label: "Weaknesses", Description: "What should improve?", Response: "Sample size."},
	}
	b := newBuilder(f)

	p, _, err := b.Build(context.Background(), 42, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	text := p.Reviews[0].Text
	if !strings.Contains(text, "### Strengths\nClear methodology.") {
		t.Errorf("Text missing Strengths block:\n%s", text)
	}
	if !strings.Contains(text, "### Weaknesses\nWhat should improve?\nSample size.") {
		t.Errorf("Text missing Weaknesses block with description:\n%s", text)
	}
	if strings.Contains(text, "Reject quietly") {
		t.Errorf("confidential element leaked into review text:\n%s", text)
	}
	if strings.Contains(text, "a;b") {
		t.Errorf("non-text element leaked into review text:\n%s", text)
	}
}

func TestBuildRedactsOptedOutReviewer(t *testing.T) {
	sub := baseSubmission()
	f := newFakeHost(sub)
	f.assignments = []host.ReviewAssignmentRecord{
		{
			AssignmentID: 100,
			ReviewerID:   10,
			Email:        "rev@example.org",
			FirstName:    "Rita",
			LastName:     "Reviewer",
			ORCID:        "0000-0001-2345-6789",
			Attachments:  []host.AttachmentRecord{{FileName: "notes.pdf", URL: "https://x/notes.pdf"}},
		},
	}
	f.comments[100] = []host.CommentRecord{
		{Kind: host.CommentPeerReview, Comments: "Detailed critique.", Viewable: true},
	}
	year := time.Now().UTC().Year()
	f.optings[fmt.Sprintf("1:10:%d", year)] = &opting.Record{
		ContextID: 1, ReviewerID: 10, Year: year, Status: opting.StatusOut,
	}
	b := newBuilder(f)

	p, _, err := b.Build(context.Background(), 42, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	r := p.Reviews[0]
	if !strings.HasSuffix(r.Reviewer.Email, "@"+opting.PseudoDomain) {
		t.Errorf("Reviewer.Email = %q, want pseudonym", r.Reviewer.Email)
	}
	if r.Reviewer.FirstName != "" || r.Reviewer.LastName != "" || r.Reviewer.ORCID != "" {
		t.Errorf("identity fields must be cleared: %+v", r.Reviewer)
	}
	if r.Text != "" {
		t.Errorf("Text = %q, must be cleared for opted-out reviewer", r.Text)
	}
	if len(r.Attachments) != 0 {
		t.Errorf("Attachments = %v, must be cleared for opted-out reviewer", r.Attachments)
	}

	// The pseudonym is stable across builds once the salt is persisted.
	p2, _, err := b.Build(context.Background(), 42, "")
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if p2.Reviews[0].Reviewer.Email != r.Reviewer.Email {
		t.Errorf("pseudonym changed between builds: %q vs %q", r.Reviewer.Email, p2.Reviews[0].Reviewer.Email)
	}
}

func TestBuildAssignmentFailureIsDiagnostic(t *testing.T) {
	f := newFakeHost(baseSubmission())
	f.assignmentsErr = fmt.Errorf("database gone")
	b := newBuilder(f)

	p, diags, err := b.Build(context.Background(), 42, "")
	if err != nil {
		t.Fatalf("Build must not fail on an optional section: %v", err)
	}
	if len(p.Reviews) != 0 {
		t.Errorf("Reviews = %v, want empty", p.Reviews)
	}
	if !containsDiagPrefix(diags, "review assignments unavailable") {
		t.Errorf("diagnostics %v missing assignments note", diags)
	}
}

func TestResolveDecision(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	tests := []struct {
		name    string
		records []host.DecisionRecord
		want    string
	}{
		{"no records", nil, ""},
		{
			"single accept",
			[]host.DecisionRecord{{Decision: host.DecisionAccept, DecidedAt: t1}},
			"ACCEPT",
		},
		{
			"earliest decision wins",
			[]host.DecisionRecord{
				{Decision: host.DecisionDecline, DecidedAt: t2},
				{Decision: host.DecisionPendingRevisions, DecidedAt: t1},
			},
			"MINORREVISION",
		},
		{
			"recommendations skipped",
			[]host.DecisionRecord{
				{Decision: host.DecisionRecommendDecline, DecidedAt: t1},
				{Decision: host.DecisionResubmit, DecidedAt: t2},
			},
			"MAJORREVISION",
		},
		{
			"only recommendations → undecided",
			[]host.DecisionRecord{
				{Decision: host.DecisionRecommendAccept, DecidedAt: t1},
			},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := payload.ResolveDecision(tt.records); got != tt.want {
				t.Errorf("ResolveDecision = %q, want %q", got, tt.want)
			}
		})
	}
}

func containsDiag(diags []string, want string) bool {
	for _, d := range diags {
		if d == want {
			return true
		}
	}
	return false
}

func containsDiagPrefix(diags []string, prefix string) bool {
	for _, d := range diags {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}
