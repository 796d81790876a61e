package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/postwatch/models"
)

// Extractor turns a rendered profile page into a PostRecord for the most
// recent timeline post.
type Extractor struct {
	base   *url.URL
	logger *slog.Logger
}

// New creates an Extractor that resolves relative links against baseURL.
func New(baseURL string, logger *slog.Logger) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("extract: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("extract: base url %q is not absolute", baseURL)
	}
	return &Extractor{base: base, logger: logger}, nil
}

// Latest returns the first non-pinned, non-promoted post on page.
//
// The page's document order is trusted as newest-first; no timestamp sort is
// applied. Returns a POST_NOT_FOUND RunError when no candidate qualifies and
// an EXTRACTION_FAILED RunError when a query fails.
func (x *Extractor) Latest(ctx context.Context, page Page, handle string) (*models.PostRecord, error) {
	candidates, err := page.Elements(ctx, PostArticle)
	if err != nil {
		return nil, models.NewRunError(models.ErrCodeExtraction, "failed to list post candidates", err)
	}

	post, skipped, err := firstQualifying(ctx, candidates)
	if err != nil {
		return nil, models.NewRunError(models.ErrCodeExtraction, "failed to inspect post candidate", err)
	}
	if post == nil {
		return nil, models.NewRunError(
			models.ErrCodeNotFound,
			fmt.Sprintf("no qualifying post among %d candidates (%d excluded)", len(candidates), skipped),
			nil,
		)
	}
	x.logger.Debug("selected latest post candidate",
		"handle", handle,
		"candidates", len(candidates),
		"excluded", skipped,
	)

	return x.record(ctx, page, post, handle)
}

// firstQualifying returns the first candidate not flagged by an exclude
// marker, along with how many were skipped before it.
func firstQualifying(ctx context.Context, candidates []Element) (Element, int, error) {
	skipped := 0
	for _, c := range candidates {
		excluded, err := isExcluded(ctx, c)
		if err != nil {
			return nil, skipped, err
		}
		if !excluded {
			return c, skipped, nil
		}
		skipped++
	}
	return nil, skipped, nil
}

func isExcluded(ctx context.Context, candidate Element) (bool, error) {
	label, err := firstText(ctx, candidate, SocialContext)
	if err != nil {
		return false, err
	}
	return hasMarker(label), nil
}

// hasMarker reports whether the whole label is an exclude marker. Repost
// labels carry a display name ("<name> reposted") and never match.
func hasMarker(label string) bool {
	label = strings.TrimSpace(label)
	for _, m := range excludeMarkers {
		if strings.EqualFold(label, m) {
			return true
		}
	}
	return false
}

func (x *Extractor) record(ctx context.Context, page Page, post Element, handle string) (*models.PostRecord, error) {
	times, err := post.Elements(ctx, PostTime)
	if err != nil {
		return nil, models.NewRunError(models.ErrCodeExtraction, "failed to locate post timestamp", err)
	}
	if len(times) == 0 {
		return nil, models.NewRunError(models.ErrCodeExtraction, "post has no timestamp element", nil)
	}
	permalink, err := x.permalink(ctx, times[0])
	if err != nil {
		return nil, err
	}

	rec := &models.PostRecord{
		Handle:       handle,
		CanonicalURL: permalink,
	}

	// Each field is written by exactly one goroutine; the record is only
	// returned after Wait.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, _, err := times[0].Attribute(gctx, "datetime")
		rec.Timestamp = v
		return err
	})
	g.Go(func() error {
		v, err := firstText(gctx, post, UserNameSpan)
		rec.AuthorName = v
		return err
	})
	g.Go(func() error {
		v, err := authorHandle(gctx, post)
		rec.AuthorHandle = v
		return err
	})
	g.Go(func() error {
		v, err := firstText(gctx, post, PostText)
		rec.BodyText = v
		return err
	})
	g.Go(func() error {
		v, err := firstAttr(gctx, page, avatarSelector(handle), "src")
		rec.AvatarURL = x.resolve(v)
		return err
	})
	g.Go(func() error {
		n, err := post.Count(gctx, PostPhoto)
		if err != nil || n == 0 {
			return err
		}
		v, err := firstAttr(gctx, post, PostPhoto, "src")
		rec.MediaURL = x.resolve(v)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, models.NewRunError(models.ErrCodeExtraction, "failed to read post fields", err)
	}

	return rec, nil
}

// permalink reads the link enclosing the timestamp and makes it absolute.
func (x *Extractor) permalink(ctx context.Context, timeEl Element) (string, error) {
	link, err := timeEl.Parent(ctx)
	if err != nil {
		return "", models.NewRunError(models.ErrCodeExtraction, "failed to locate permalink", err)
	}
	href, ok, err := link.Attribute(ctx, "href")
	if err != nil {
		return "", models.NewRunError(models.ErrCodeExtraction, "failed to read permalink", err)
	}
	if !ok || strings.TrimSpace(href) == "" {
		return "", models.NewRunError(models.ErrCodeExtraction, "timestamp is not inside a link", nil)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", models.NewRunError(models.ErrCodeExtraction, "malformed permalink", err)
	}
	return x.base.ResolveReference(ref).String(), nil
}

// resolve makes raw absolute; unparsable values pass through unchanged.
func (x *Extractor) resolve(raw string) string {
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return x.base.ResolveReference(ref).String()
}

func authorHandle(ctx context.Context, post Element) (string, error) {
	spans, err := post.Elements(ctx, UserNameSpan)
	if err != nil {
		return "", err
	}
	for _, s := range spans {
		text, err := s.Text(ctx)
		if err != nil {
			return "", err
		}
		if strings.Contains(text, "@") {
			return strings.TrimSpace(text), nil
		}
	}
	return "", nil
}

// firstText returns the trimmed text of the first match, or "" if nothing
// matches.
func firstText(ctx context.Context, scope Page, selector string) (string, error) {
	els, err := scope.Elements(ctx, selector)
	if err != nil || len(els) == 0 {
		return "", err
	}
	text, err := els[0].Text(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// firstAttr returns the named attribute of the first match, or "" if
// nothing matches or the attribute is absent.
func firstAttr(ctx context.Context, scope Page, selector, name string) (string, error) {
	els, err := scope.Elements(ctx, selector)
	if err != nil || len(els) == 0 {
		return "", err
	}
	v, _, err := els[0].Attribute(ctx, name)
	return strings.TrimSpace(v), err
}
