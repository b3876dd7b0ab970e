package opting_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/openrev/rqcbridge/opting"
)

func TestPseudonymDeterministic(t *testing.T) {
	salt := "abc123"

	p1 := opting.Pseudonym("reviewer@example.org", salt)
	p2 := opting.Pseudonym("reviewer@example.org", salt)
	if p1 != p2 {
		t.Errorf("same input produced different pseudonyms: %q vs %q", p1, p2)
	}

	if !strings.HasSuffix(p1, "@"+opting.PseudoDomain) {
		t.Errorf("pseudonym %q missing @%s suffix", p1, opting.PseudoDomain)
	}
	local := strings.TrimSuffix(p1, "@"+opting.PseudoDomain)
	if len(local) != 32 {
		t.Errorf("pseudonym local part length = %d, want 32", len(local))
	}
}

func TestPseudonymNormalizesEmail(t *testing.T) {
	salt := "abc123"

	base := opting.Pseudonym("reviewer@example.org", salt)
	tests := []struct {
		name  string
		email string
	}{
		{"uppercase", "REVIEWER@EXAMPLE.ORG"},
		{"mixed case", "Reviewer@Example.org"},
		{"surrounding whitespace", "  reviewer@example.org  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := opting.Pseudonym(tt.email, salt); got != base {
				t.Errorf("Pseudonym(%q) = %q, want %q", tt.email, got, base)
			}
		})
	}
}

func TestPseudonymVariesWithSaltAndEmail(t *testing.T) {
	p1 := opting.Pseudonym("reviewer@example.org", "salt-one")
	p2 := opting.Pseudonym("reviewer@example.org", "salt-two")
	if p1 == p2 {
		t.Error("different salts produced the same pseudonym")
	}

	p3 := opting.Pseudonym("other@example.org", "salt-one")
	if p1 == p3 {
		t.Error("different emails produced the same pseudonym")
	}
}

func TestGenerateSalt(t *testing.T) {
	s1 := opting.GenerateSalt()
	s2 := opting.GenerateSalt()
	if len(s1) != 64 {
		t.Errorf("salt length = %d, want 64 hex chars", len(s1))
	}
	if s1 == s2 {
		t.Error("two generated salts are identical")
	}
}

func TestRecordEffectiveAt(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rec  opting.Record
		want bool
	}{
		{
			"current-year final OUT decides",
			opting.Record{Year: 2026, Status: opting.StatusOut},
			true,
		},
		{
			"current-year final IN decides",
			opting.Record{Year: 2026, Status: opting.StatusIn},
			true,
		},
		{
			"preliminary never decides",
			opting.Record{Year: 2026, Status: opting.StatusOut, Preliminary: true},
			false,
		},
		{
			"unknown never decides",
			opting.Record{Year: 2026, Status: opting.StatusUnknown},
			false,
		},
		{
			"previous year never decides",
			opting.Record{Year: 2025, Status: opting.StatusOut},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.EffectiveAt(now); got != tt.want {
				t.Errorf("EffectiveAt = %v, want %v", got, tt.want)
			}
		})
	}
}

// fakeStore is a map-backed opting.Store for service tests.
type fakeStore struct {
	recs map[string]*opting.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[string]*opting.Record)}
}

func key(contextID, reviewerID int64, year int) string {
	return fmt.Sprintf("%d:%d:%d", contextID, reviewerID, year)
}

func (f *fakeStore) GetOpting(_ context.Context, contextID, reviewerID int64, year int) (*opting.Record, error) {
	return f.recs[key(contextID, reviewerID, year)], nil
}

func (f *fakeStore) PutOpting(_ context.Context, rec *opting.Record) error {
	f.recs[key(rec.ContextID, rec.ReviewerID, rec.Year)] = rec
	return nil
}

func TestServiceIsOptedOut(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := opting.NewService(store, nil)

	year := time.Now().UTC().Year()

	// No record on file: not opted out.
	out, err := svc.IsOptedOut(ctx, 1, 10)
	if err != nil {
		t.Fatalf("IsOptedOut: %v", err)
	}
	if out {
		t.Error("absent record should not count as opted out")
	}

	// Final OUT for the current year.
	if err := svc.Record(ctx, &opting.Record{ContextID: 1, ReviewerID: 10, Year: year, Status: opting.StatusOut}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	out, err = svc.IsOptedOut(ctx, 1, 10)
	if err != nil {
		t.Fatalf("IsOptedOut: %v", err)
	}
	if !out {
		t.Error("current-year final OUT should count as opted out")
	}

	// Preliminary OUT does not decide.
	if err := svc.Record(ctx, &opting.Record{ContextID: 1, ReviewerID: 20, Year: year, Status: opting.StatusOut, Preliminary: true}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	out, err = svc.IsOptedOut(ctx, 1, 20)
	if err != nil {
		t.Fatalf("IsOptedOut: %v", err)
	}
	if out {
		t.Error("preliminary OUT should not count as opted out")
	}
}

func TestServiceStatusSynthesizesUnknown(t *testing.T) {
	ctx := context.Background()
	svc := opting.NewService(newFakeStore(), nil)

	rec, err := svc.Status(ctx, 3, 30)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if rec.Status != opting.StatusUnknown {
		t.Errorf("Status = %q, want unknown", rec.Status)
	}
	if rec.ContextID != 3 || rec.ReviewerID != 30 {
		t.Errorf("synthesized record keyed (%d,%d), want (3,30)", rec.ContextID, rec.ReviewerID)
	}
	if rec.Year != time.Now().UTC().Year() {
		t.Errorf("synthesized record year = %d, want current year", rec.Year)
	}
}

func TestServiceRecordDefaultsYear(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := opting.NewService(store, nil)

	rec := &opting.Record{ContextID: 1, ReviewerID: 10, Status: opting.StatusIn}
	if err := svc.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.Year != time.Now().UTC().Year() {
		t.Errorf("Year = %d, want current year default", rec.Year)
	}
}
