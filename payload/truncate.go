package payload

import "fmt"

// Size limits applied during payload construction.
const (
	MaxAuthors = 200
	MaxEditors = 20
	MaxReviews = 20

	// MaxLineChars caps single-line free-text fields (titles, names).
	MaxLineChars = 2000

	// MaxTextChars caps multi-line fields (review text).
	MaxTextChars = 200000
)

// capList truncates items to at most limit entries, recording a diagnostic
// when entries are actually removed.
func capList[T any](items []T, limit int, section string, diags *[]string) []T {
	if len(items) <= limit {
		return items
	}
	*diags = append(*diags, fmt.Sprintf(
		"%s truncated to fit delivery limits. Original size: %d. Truncated to: %d.",
		section, len(items), limit))
	return items[:limit]
}

// capLine truncates a single-line field to MaxLineChars.
func capLine(s, field string, diags *[]string) string {
	return capChars(s, MaxLineChars, field, diags)
}

// capText truncates a multi-line field to MaxTextChars.
func capText(s, field string, diags *[]string) string {
	return capChars(s, MaxTextChars, field, diags)
}

// capChars truncates s to at most limit characters (runes, so multi-byte
// text is never cut mid-character), recording a diagnostic on truncation.
func capChars(s string, limit int, field string, diags *[]string) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	*diags = append(*diags, fmt.Sprintf(
		"%s truncated to fit delivery limits. Original size: %d. Truncated to: %d.",
		field, len(runes), limit))
	return string(runes[:limit])
}
