package extract

import (
	"testing"

	"github.com/andybalholm/cascadia"
)

func TestSelectorsCompile(t *testing.T) {
	for _, sel := range []string{
		ReadyLandmark, PostArticle, SocialContext, PostTime,
		UserNameBlock, UserNameSpan, PostText, PostPhoto,
		avatarSelector("acct"),
	} {
		if _, err := cascadia.Compile(sel); err != nil {
			t.Errorf("selector %q does not compile: %v", sel, err)
		}
	}
}

func TestHasMarker(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"Pinned", true},
		{"pinned", true},
		{"Promoted", true},
		{"Ad", true},
		{"", false},
		{"Adam reposted", false},
		{"Account reposted", false},
		{"  Pinned\n", true},
		{"Ad reposted", false},
		{"Pinned Fan reposted", false},
		{"Promoted Deals reposted", false},
	}
	for _, tt := range tests {
		if got := hasMarker(tt.label); got != tt.want {
			t.Errorf("hasMarker(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}
