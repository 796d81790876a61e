package models

import "testing"

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"acct", "acct", false},
		{"@Acct_01", "Acct_01", false},
		{"  nasa ", "nasa", false},
		{"", "", true},
		{"@", "", true},
		{"../etc", "", true},
		{"a/b", "", true},
		{"sixteen_chars_xx", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeHandle(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeHandle(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !IsCode(err, ErrCodeConfig) {
			t.Errorf("NormalizeHandle(%q) code = %q, want %q", tt.in, CodeOf(err), ErrCodeConfig)
		}
		if got != tt.want {
			t.Errorf("NormalizeHandle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
