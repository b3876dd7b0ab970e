package payload

import (
	"regexp"
	"strings"

	"github.com/openrev/rqcbridge/host"
)

// confidentialMarker matches form element labels that flag editor-only
// content. Matching elements never leave the host application.
var confidentialMarker = regexp.MustCompile(`(?i)confidential`)

// extractFormText concatenates the text-type elements of a structured review
// form into one review text. Each element contributes its label, optional
// description, and the reviewer's response. Elements whose label carries a
// confidential marker are skipped entirely.
func extractFormText(elements []host.FormElementRecord) string {
	var b strings.Builder
	for _, el := range elements {
		if !el.Kind.IsText() {
			continue
		}
		if confidentialMarker.MatchString(el.Label) {
			continue
		}
		if strings.TrimSpace(el.Response) == "" {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if label := strings.TrimSpace(el.Label); label != "" {
			b.WriteString("### ")
			b.WriteString(label)
			b.WriteString("\n")
		}
		if desc := strings.TrimSpace(el.Description); desc != "" {
			b.WriteString(desc)
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimSpace(el.Response))
	}
	return b.String()
}

// extractCommentText concatenates a reviewer's submitted peer-review
// comments into one review text. Non-peer-review comment kinds and
// editor-only (non-viewable) comments are skipped.
func extractCommentText(comments []host.CommentRecord) string {
	var b strings.Builder
	for _, c := range comments {
		if c.Kind != host.CommentPeerReview || !c.Viewable {
			continue
		}
		text := strings.TrimSpace(c.Comments)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String()
}

// mapRecommendation maps a host reviewer recommendation to the grading
// service's suggested-decision vocabulary. Codes without an RQC equivalent
// map to the empty string.
func mapRecommendation(r host.Recommendation) string {
	switch r {
	case host.RecommendationAccept:
		return "ACCEPT"
	case host.RecommendationMinorRevisions:
		return "MINORREVISION"
	case host.RecommendationMajorRevisions:
		return "MAJORREVISION"
	case host.RecommendationResubmit:
		return "MAJORREVISION"
	case host.RecommendationDecline:
		return "REJECT"
	default:
		return ""
	}
}
