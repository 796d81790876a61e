package extract_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/postwatch/extract"
	"github.com/use-agent/postwatch/htmldoc"
	"github.com/use-agent/postwatch/models"
)

func newExtractor(t *testing.T) *extract.Extractor {
	t.Helper()
	x, err := extract.New("https://x.com", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return x
}

func parse(t *testing.T, body string) *htmldoc.Document {
	t.Helper()
	doc, err := htmldoc.ParseString(body)
	require.NoError(t, err)
	return doc
}

func timeline(articles string) string {
	return `<html><body><main role="main">` + articles + `</main></body></html>`
}

func TestLatest_SkipsPinnedPost(t *testing.T) {
	f, err := os.Open("testdata/timeline.html")
	require.NoError(t, err)
	defer f.Close()
	doc, err := htmldoc.Parse(f)
	require.NoError(t, err)

	got, err := newExtractor(t).Latest(context.Background(), doc, "acct")
	require.NoError(t, err)

	want := &models.PostRecord{
		Handle:       "acct",
		AuthorName:   "Account",
		AuthorHandle: "@acct",
		BodyText:     "hello world",
		CanonicalURL: "https://x.com/acct/status/200",
		Timestamp:    "2024-05-06T07:08:09.000Z",
		MediaURL:     "https://pbs.twimg.com/media/abc.jpg",
		AvatarURL:    "https://pbs.twimg.com/profile_images/1/avatar_400x400.jpg",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestLatest_MissingBodyText(t *testing.T) {
	doc := parse(t, timeline(`
		<article data-testid="tweet">
			<div data-testid="User-Name"><span>Media Only</span><span>@acct</span></div>
			<a href="/acct/status/1"><time datetime="2024-01-01T00:00:00.000Z">1h</time></a>
			<div data-testid="tweetPhoto"><img src="/media/x.png"></div>
		</article>`))

	got, err := newExtractor(t).Latest(context.Background(), doc, "acct")
	require.NoError(t, err)

	assert.Equal(t, "", got.BodyText)
	assert.Equal(t, "https://x.com/acct/status/1", got.CanonicalURL)
	assert.Equal(t, "https://x.com/media/x.png", got.MediaURL)
	assert.Equal(t, "", got.AvatarURL)
}

func TestLatest_NoMedia(t *testing.T) {
	doc := parse(t, timeline(`
		<article data-testid="tweet">
			<div data-testid="User-Name"><span>A</span><span>@a</span></div>
			<a href="/a/status/9"><time datetime="2024-01-01T00:00:00.000Z">1h</time></a>
			<div data-testid="tweetText">text only</div>
		</article>`))

	got, err := newExtractor(t).Latest(context.Background(), doc, "a")
	require.NoError(t, err)
	assert.False(t, got.HasMedia())
}

func TestLatest_MissingNameBlock(t *testing.T) {
	doc := parse(t, timeline(`
		<article data-testid="tweet">
			<a href="/a/status/9"><time datetime="2024-01-01T00:00:00.000Z">1h</time></a>
		</article>`))

	got, err := newExtractor(t).Latest(context.Background(), doc, "a")
	require.NoError(t, err)
	assert.Equal(t, "", got.AuthorName)
	assert.Equal(t, "", got.AuthorHandle)
}

func TestLatest_NotFound(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty timeline", timeline("")},
		{"only pinned", timeline(`
			<article data-testid="tweet">
				<div data-testid="socialContext">Pinned</div>
				<a href="/a/status/1"><time datetime="2024-01-01T00:00:00.000Z">1h</time></a>
			</article>`)},
		{"only promoted", timeline(`
			<article data-testid="tweet">
				<div data-testid="socialContext">Promoted</div>
				<a href="/ads/status/2"><time datetime="2024-01-01T00:00:00.000Z">1h</time></a>
			</article>`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newExtractor(t).Latest(context.Background(), parse(t, tt.body), "a")
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.ErrCodeNotFound), "got %v", err)
		})
	}
}

func TestLatest_RepostByNamedUserIsNotExcluded(t *testing.T) {
	doc := parse(t, timeline(`
		<article data-testid="tweet">
			<div data-testid="socialContext">Adam reposted</div>
			<a href="/adam/status/5"><time datetime="2024-01-01T00:00:00.000Z">1h</time></a>
		</article>`))

	got, err := newExtractor(t).Latest(context.Background(), doc, "a")
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/adam/status/5", got.CanonicalURL)
}

func TestLatest_RepostLabelContainingMarkerWord(t *testing.T) {
	for _, label := range []string{"Ad reposted", "Pinned Fan reposted"} {
		t.Run(label, func(t *testing.T) {
			doc := parse(t, timeline(`
				<article data-testid="tweet">
					<div data-testid="socialContext">`+label+`</div>
					<a href="/a/status/9"><time datetime="2024-02-01T00:00:00.000Z">1h</time></a>
				</article>
				<article data-testid="tweet">
					<a href="/a/status/3"><time datetime="2024-01-01T00:00:00.000Z">1d</time></a>
				</article>`))

			got, err := newExtractor(t).Latest(context.Background(), doc, "a")
			require.NoError(t, err)
			assert.Equal(t, "https://x.com/a/status/9", got.CanonicalURL)
		})
	}
}

func TestLatest_TimestampOutsideLink(t *testing.T) {
	doc := parse(t, timeline(`
		<article data-testid="tweet">
			<div><time datetime="2024-01-01T00:00:00.000Z">1h</time></div>
		</article>`))

	_, err := newExtractor(t).Latest(context.Background(), doc, "a")
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodeExtraction))
}

func TestLatest_QueryFailure(t *testing.T) {
	boom := errors.New("cdp connection lost")
	_, err := newExtractor(t).Latest(context.Background(), failingPage{err: boom}, "a")
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodeExtraction))
	assert.ErrorIs(t, err, boom)
}

func TestNew_RejectsRelativeBase(t *testing.T) {
	_, err := extract.New("/relative", slog.Default())
	assert.Error(t, err)
}

type failingPage struct{ err error }

func (p failingPage) Elements(context.Context, string) ([]extract.Element, error) {
	return nil, p.err
}

func (p failingPage) Count(context.Context, string) (int, error) {
	return 0, p.err
}
