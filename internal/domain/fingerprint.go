package domain

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query keys stripped during URL normalization so the
// same article shared through different campaigns dedups to one signal.
var trackingParams = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"utm_content": true, "utm_term": true,
	"fbclid": true, "gclid": true, "msclkid": true,
	"mc_cid": true, "mc_eid": true,
	"ref": true, "referer": true, "igshid": true, "_ga": true,
}

// Fingerprint derives the content identity of a signal from normalized
// parts. The same underlying event must always hash to the same value, so
// callers pass content fields (title, canonical URL), never provider IDs.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// NormalizeURL canonicalizes a URL for fingerprinting: lowercases scheme and
// host, drops the fragment and tracking params, sorts the remaining query
// keys, and strips a trailing slash. Unparseable input is returned as-is so
// fingerprints stay stable even for malformed provider links.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	if parsed.Path != "/" {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
	}

	if parsed.RawQuery != "" {
		params := parsed.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			if trackingParams[strings.ToLower(k)] {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf strings.Builder
		for i, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for j, v := range vals {
				if i > 0 || j > 0 {
					buf.WriteByte('&')
				}
				buf.WriteString(url.QueryEscape(k))
				buf.WriteByte('=')
				buf.WriteString(url.QueryEscape(v))
			}
		}
		parsed.RawQuery = buf.String()
	}

	return parsed.String()
}
