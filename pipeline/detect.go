package pipeline

import "github.com/use-agent/postwatch/models"

// IsNew reports whether rec differs from the stored marker. A missing
// marker means first run, so any post is new.
func IsNew(rec *models.PostRecord, marker string, found bool) bool {
	if !found {
		return true
	}
	return rec.CanonicalURL != marker
}
