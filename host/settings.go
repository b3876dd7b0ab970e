package host

import "context"

// Setting keys rqcbridge stores per journal through the SettingsStore.
const (
	// SettingJournalID is the journal's identifier on the grading service.
	SettingJournalID = "rqcJournalId"

	// SettingAPIKey is the journal's API key for the grading service.
	SettingAPIKey = "rqcJournalAPIKey"

	// SettingSalt is the per-journal pseudonym salt. Generated once,
	// never rotated.
	SettingSalt = "rqcPseudonymSalt"

	// SettingDepthOnly, when "1", suppresses outbound calls while still
	// building payloads (operator dry-run).
	SettingDepthOnly = "rqcDepthOnlyMode"
)

// SettingsStore reads and writes per-journal settings. The host application
// owns the storage; rqcbridge uses it for its credentials and salt.
type SettingsStore interface {
	// GetSetting returns the value for (contextID, key), or "" when unset.
	GetSetting(ctx context.Context, contextID int64, key string) (string, error)

	// PutSetting creates or replaces the value for (contextID, key).
	PutSetting(ctx context.Context, contextID int64, key, value string) error
}
