package normalize

import (
	"mime"
	"regexp"
	"strings"
	"time"
)

var (
	angleAddrPattern = regexp.MustCompile(`<\s*([^<>\s]+@[^<>\s]+)\s*>`)
	bareAddrPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// ParseAddress extracts an email address and optional display name from
// an address-bearing header value. Precedence: an angle-bracketed address
// wins over a bare address-like token; if neither pattern matches, the
// raw string is used verbatim as the email.
func ParseAddress(raw string) (email, name string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	if m := angleAddrPattern.FindStringSubmatchIndex(raw); m != nil {
		email = raw[m[2]:m[3]]
		name = cleanDisplayName(raw[:m[0]])
		return email, name
	}

	if addr := bareAddrPattern.FindString(raw); addr != "" {
		return addr, ""
	}

	return raw, ""
}

func cleanDisplayName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	if decoded, err := new(mime.WordDecoder).DecodeHeader(s); err == nil {
		s = decoded
	}
	return strings.TrimSpace(s)
}

// DecodeHeader decodes MIME-encoded header words ("=?UTF-8?B?...?=") to
// plain text, returning the input unchanged when decoding fails.
func DecodeHeader(encoded string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(encoded)
	if err != nil {
		return encoded
	}
	return decoded
}

// timeValue wraps a timestamp so envelope stays comparable in tests.
type timeValue struct{ t time.Time }
