package models

// PostRecord is the normalized form of a single post scraped from a profile
// timeline. It lives for one run only.
type PostRecord struct {
	// Handle is the account identifier the run was invoked for.
	Handle string `json:"handle"`

	// AuthorName is the display name as rendered; empty if unavailable.
	AuthorName string `json:"author_name"`

	// AuthorHandle is the "@handle" text as rendered. Casing may differ
	// from Handle.
	AuthorHandle string `json:"author_handle"`

	// BodyText is the post's text; empty for media-only posts.
	BodyText string `json:"body_text"`

	// CanonicalURL is the absolute permalink of the post and the only key
	// used for deduplication.
	CanonicalURL string `json:"canonical_url"`

	// Timestamp is the ISO-8601 publish time, used for display only.
	Timestamp string `json:"timestamp"`

	// MediaURL is the first attached photo, if any.
	MediaURL string `json:"media_url,omitempty"`

	// AvatarURL is the profile photo of the page's subject account.
	AvatarURL string `json:"avatar_url,omitempty"`
}

// HasMedia reports whether the post carries an attached photo.
func (p *PostRecord) HasMedia() bool {
	return p.MediaURL != ""
}

// Outcome is the terminal state of a successful run.
type Outcome string

const (
	// OutcomeUpToDate means the latest post matched the stored marker.
	OutcomeUpToDate Outcome = "up_to_date"

	// OutcomeDelivered means a new post was delivered and the marker updated.
	OutcomeDelivered Outcome = "delivered"

	// OutcomeDryRun means a new post was found but delivery was skipped.
	OutcomeDryRun Outcome = "dry_run"
)
