package scraper

import "testing"

func TestIsTrackerDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"analytics.twitter.com", true},
		{"pagead2.googlesyndication.com", true},
		{"STATS.G.DOUBLECLICK.NET", true},
		{"x.com", false},
		{"pbs.twimg.com", false},
		{"twitter.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isTrackerDomain(tt.host); got != tt.want {
			t.Errorf("isTrackerDomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}
