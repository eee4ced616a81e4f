package cmis

import (
	"sort"
	"strings"

	cmiserr "drccmis/pkg/errors"
)

// MaxURLLength is the longest property value some vendors accept.
const MaxURLLength = 100

// URLMapping replaces LongPattern by ShortPattern in URLs written to the DMS.
type URLMapping struct {
	LongPattern  string `json:"long_pattern" mapstructure:"long_pattern" yaml:"long_pattern"`
	ShortPattern string `json:"short_pattern" mapstructure:"short_pattern" yaml:"short_pattern"`
}

// URLMapper shortens and expands URLs using a fixed set of mappings. A nil or
// empty URLMapper is disabled and leaves values untouched at the call sites.
type URLMapper struct {
	mappings []URLMapping
}

// NewURLMapper copies the mappings.
func NewURLMapper(mappings []URLMapping) *URLMapper {
	out := make([]URLMapping, len(mappings))
	copy(out, mappings)
	return &URLMapper{mappings: out}
}

// Enabled reports whether any mapping is configured.
func (m *URLMapper) Enabled() bool {
	return m != nil && len(m.mappings) > 0
}

// Shrink replaces the longest matching long pattern. It fails when no pattern
// matches or when the result is still longer than MaxURLLength.
func (m *URLMapper) Shrink(longURL string) (string, error) {
	mapping, ok := m.match(longURL, func(u URLMapping) string { return u.LongPattern })
	if !ok {
		return "", cmiserr.Errorf(cmiserr.ErrNoURLMapping, "no URL mapping matches %s", longURL)
	}
	short := strings.ReplaceAll(longURL, mapping.LongPattern, mapping.ShortPattern)
	if len(short) > MaxURLLength {
		return "", cmiserr.Errorf(cmiserr.ErrURLTooLong,
			"shortened URL %s is longer than %d characters", short, MaxURLLength)
	}
	return short, nil
}

// Expand reverses Shrink using the longest matching short pattern.
func (m *URLMapper) Expand(shortURL string) (string, error) {
	mapping, ok := m.match(shortURL, func(u URLMapping) string { return u.ShortPattern })
	if !ok {
		return "", cmiserr.Errorf(cmiserr.ErrNoURLMapping, "no URL mapping matches %s", shortURL)
	}
	return strings.ReplaceAll(shortURL, mapping.ShortPattern, mapping.LongPattern), nil
}

func (m *URLMapper) match(url string, pattern func(URLMapping) string) (URLMapping, bool) {
	if m == nil {
		return URLMapping{}, false
	}
	var candidates []URLMapping
	for _, mapping := range m.mappings {
		if p := pattern(mapping); p != "" && strings.Contains(url, p) {
			candidates = append(candidates, mapping)
		}
	}
	if len(candidates) == 0 {
		return URLMapping{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(pattern(candidates[i])) > len(pattern(candidates[j]))
	})
	return candidates[0], true
}
