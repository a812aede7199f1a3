package identity

import (
	"net/url"
	"regexp"
	"strings"
)

// Query parameters that only carry tracking state. Two links differing
// only in these point at the same listing.
var trackingParams = map[string]bool{
	"hash":       true,
	"itmmeta":    true,
	"itmprp":     true,
	"amdata":     true,
	"epid":       true,
	"_skw":       true,
	"mkevt":      true,
	"mkcid":      true,
	"mkrid":      true,
	"campid":     true,
	"toolid":     true,
	"customid":   true,
	"ref":        true,
	"ssPageName": true,
	"var":        true,
	"_from":      true,
	"_nkw":       true,
	"_sacat":     true,
	"fbclid":     true,
	"gclid":      true,
}

// CanonicalURL resolves raw against base and strips fragments and
// tracking parameters. It returns false when raw is not a usable
// http(s) link.
func CanonicalURL(raw, base string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(strings.ToLower(raw), "javascript:") {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		if base == "" {
			return "", false
		}
		b, err := url.Parse(base)
		if err != nil {
			return "", false
		}
		u = b.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}

	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}

	q := u.Query()
	for key := range q {
		if trackingParams[key] || strings.HasPrefix(strings.ToLower(key), "utm_") || strings.HasPrefix(key, "_trk") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), true
}

// ExternalID pulls the source item id out of a link using the first
// capture group of pattern, falling back to the URL fingerprint.
func ExternalID(link string, pattern *regexp.Regexp) string {
	if pattern != nil {
		if m := pattern.FindStringSubmatch(link); len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return Fingerprint(link)
}
