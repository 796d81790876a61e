package models

import (
	"fmt"
	"regexp"
	"strings"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// NormalizeHandle strips a leading "@" and checks raw against the account
// name rules of the target site. The result is safe to use in file names
// and URL paths.
func NormalizeHandle(raw string) (string, error) {
	h := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	if h == "" {
		return "", NewRunError(ErrCodeConfig, "handle is required", nil)
	}
	if !handlePattern.MatchString(h) {
		return "", NewRunError(ErrCodeConfig, fmt.Sprintf("invalid handle %q", raw), nil)
	}
	return h, nil
}
