package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/postwatch/models"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"usage", &usageError{err: errors.New("accepts 1 arg(s), received 0")}, exitUsage},
		{"config", models.NewRunError(models.ErrCodeConfig, "AUTH_TOKEN is not set", nil), exitUsage},
		{"navigation", models.NewRunError(models.ErrCodeNavigation, "reset", nil), exitFailure},
		{"delivery", models.NewRunError(models.ErrCodeDelivery, "500", nil), exitFailure},
		{"plain", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestRoot_MissingHandleIsUsageError(t *testing.T) {
	rootCmd.SetArgs([]string{})
	rootCmd.SetOut(&bytes.Buffer{})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestRoot_MissingCredentialIsConfigError(t *testing.T) {
	t.Setenv("AUTH_TOKEN", "")
	t.Setenv("DISCORD_WEBHOOK_URL", "")
	t.Chdir(t.TempDir())

	rootCmd.SetArgs([]string{"acct"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodeConfig))
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestInspect_PrintsRecord(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	page := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<main role="main">
<article data-testid="tweet">
  <div data-testid="User-Name"><span>Account</span><span>@acct</span></div>
  <a href="/acct/status/42"><time datetime="2024-05-01T00:00:00.000Z">May 1</time></a>
  <div data-testid="tweetText">saved page</div>
</article></main>`), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"inspect", "acct", page})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "https://x.com/acct/status/42")
	assert.Contains(t, out.String(), "saved page")
}

func TestMarker_ShowAndReset(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("POSTWATCH_STATE_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acct_last_tweet.txt"), []byte("https://x.com/acct/status/1"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"marker", "acct"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "https://x.com/acct/status/1")

	out.Reset()
	rootCmd.SetArgs([]string{"marker", "acct", "--reset"})
	require.NoError(t, rootCmd.Execute())
	assert.NoFileExists(t, filepath.Join(dir, "acct_last_tweet.txt"))
	resetMarker = false
}
