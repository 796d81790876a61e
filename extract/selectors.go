package extract

// X.com DOM selectors.
// Kept together because X changes its markup often; update these first when
// extraction breaks.
const (
	// ReadyLandmark is present once the timeline shell has rendered.
	ReadyLandmark = `main[role="main"]`

	PostArticle   = `article[data-testid="tweet"]`
	SocialContext = `[data-testid="socialContext"]`
	PostTime      = `time`
	UserNameBlock = `[data-testid="User-Name"]`
	UserNameSpan  = `[data-testid="User-Name"] span`
	PostText      = `[data-testid="tweetText"]`
	PostPhoto     = `[data-testid="tweetPhoto"] img`
)

// avatarSelector locates the profile photo of the page's subject account.
func avatarSelector(handle string) string {
	return `a[href="/` + handle + `/photo"] img`
}

// excludeMarkers flag candidates that are not part of the chronological
// timeline. Matched case-insensitively against the whole social context
// label. Only "Pinned" is known to render there; ad badges may sit outside
// the label, in which case promoted posts are not excluded.
var excludeMarkers = []string{"Pinned", "Promoted", "Ad"}
