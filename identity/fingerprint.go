package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonTextRegex    = regexp.MustCompile(`[^a-z0-9\s\-\.+/"]`)
)

// Fingerprint is a short stable hash of a canonical listing URL.
func Fingerprint(canonicalURL string) string {
	hash := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(hash[:8])
}

// NormalizeText lowercases and collapses whitespace so keyword rules
// can match on plain substrings.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonTextRegex.ReplaceAllString(s, " ")
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CollapseSpace trims and collapses runs of whitespace without changing case.
func CollapseSpace(s string) string {
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(s, " "))
}
