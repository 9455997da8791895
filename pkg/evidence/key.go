package evidence

import "strings"

// Separator splits an evidence key into its prefix and suffix.
const Separator = "."

// Well-known evidence prefixes.
const (
	// PrefixQuery marks evidence taken from a query string or supplied for
	// offline processing. It always wins over other prefixes.
	PrefixQuery = "query"

	// PrefixHeader marks evidence taken from HTTP request headers.
	PrefixHeader = "header"

	// PrefixCookie marks evidence taken from HTTP cookies.
	PrefixCookie = "cookie"

	// PrefixOther is the bucket for every prefix not listed above.
	PrefixOther = "other"
)

// Key is a parsed evidence key.
type Key struct {
	// Raw is the key exactly as supplied by the caller.
	Raw string

	// Prefix is the lower-cased first segment.
	Prefix string

	// Suffix is the lower-cased last segment.
	Suffix string
}

// ParseKey splits a raw evidence key. It reports false when the key has no
// separator or an empty suffix, since such a key cannot be sent to the cloud.
func ParseKey(raw string) (Key, bool) {
	first := strings.Index(raw, Separator)
	if first < 0 {
		return Key{}, false
	}
	last := strings.LastIndex(raw, Separator)
	suffix := raw[last+len(Separator):]
	if suffix == "" {
		return Key{}, false
	}
	return Key{
		Raw:    raw,
		Prefix: strings.ToLower(raw[:first]),
		Suffix: strings.ToLower(suffix),
	}, true
}

// Bucket returns the precedence bucket the key belongs to.
func (k Key) Bucket() string {
	switch k.Prefix {
	case PrefixQuery, PrefixHeader, PrefixCookie:
		return k.Prefix
	default:
		return PrefixOther
	}
}

// HasPrefix reports whether the key's prefix matches prefix, ignoring case.
func (k Key) HasPrefix(prefix string) bool {
	return strings.EqualFold(k.Prefix, prefix)
}
