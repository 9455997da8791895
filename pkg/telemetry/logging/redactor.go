package logging

import (
	"regexp"
	"strings"
)

// resourceParam matches a resource key passed as a query parameter.
var resourceParam = regexp.MustCompile(`(?i)(resource=)([^&\s"']+)`)

// Redactor masks resource keys in log output.
type Redactor struct {
	secrets  []string
	replacer *strings.Replacer
}

// NewRedactor creates a redactor for the given literal secrets. Empty
// secrets are ignored. Query parameters named "resource" are always masked.
func NewRedactor(secrets ...string) *Redactor {
	r := &Redactor{}
	var pairs []string
	for _, s := range secrets {
		if s == "" {
			continue
		}
		r.secrets = append(r.secrets, s)
		pairs = append(pairs, s, RedactResourceKey(s))
	}
	if len(pairs) > 0 {
		r.replacer = strings.NewReplacer(pairs...)
	}
	return r
}

// RedactString masks every known secret and resource query parameter.
func (r *Redactor) RedactString(value string) string {
	if r == nil || value == "" {
		return value
	}
	if r.replacer != nil {
		value = r.replacer.Replace(value)
	}
	return resourceParam.ReplaceAllStringFunc(value, func(m string) string {
		parts := resourceParam.FindStringSubmatch(m)
		return parts[1] + RedactResourceKey(parts[2])
	})
}

// RedactResourceKey keeps the first four characters for identification.
func RedactResourceKey(key string) string {
	if strings.HasSuffix(key, "***") {
		return key
	}
	if len(key) <= 4 {
		return "***"
	}
	return key[:4] + "***"
}
