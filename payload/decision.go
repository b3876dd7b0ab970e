package payload

import (
	"sort"

	"github.com/openrev/rqcbridge/host"
)

// ResolveDecision scans a round's decision records in chronological order and
// returns the mapped RQC decision string for the first record that denotes an
// actual decision. Recommendation entries are advisory and skipped. Returns
// the empty string when the round has no decision yet.
func ResolveDecision(records []host.DecisionRecord) string {
	sorted := make([]host.DecisionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DecidedAt.Before(sorted[j].DecidedAt)
	})

	for _, rec := range sorted {
		if rec.Decision.IsRecommendation() {
			continue
		}
		if mapped := mapDecision(rec.Decision); mapped != "" {
			return mapped
		}
	}
	return ""
}

// mapDecision maps a host editorial decision code to the grading service's
// decision vocabulary.
func mapDecision(d host.Decision) string {
	switch d {
	case host.DecisionAccept:
		return "ACCEPT"
	case host.DecisionPendingRevisions:
		return "MINORREVISION"
	case host.DecisionResubmit:
		return "MAJORREVISION"
	case host.DecisionDecline:
		return "REJECT"
	default:
		return ""
	}
}
