package mist

import (
	"time"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
)

// DefaultSiteNameFilter matches every site.
const DefaultSiteNameFilter = ".*"

// SiteFilter selects sites by name. Matching is anchored at the start of the name
// only, so "AT-" selects every site whose name begins with AT-.
type SiteFilter struct {
	pattern string
	re      *regexp2.Regexp
}

// NewSiteFilter compiles pattern. Lookaround and the other Perl-style constructs
// supported by regexp2 are allowed.
func NewSiteFilter(pattern string) (*SiteFilter, error) {
	re, err := regexp2.Compile(`\A(?:`+pattern+`)`, regexp2.None)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid site name filter %q", pattern)
	}
	re.MatchTimeout = time.Second
	return &SiteFilter{pattern: pattern, re: re}, nil
}

// Match reports whether name is selected.
func (f *SiteFilter) Match(name string) (bool, error) {
	ok, err := f.re.MatchString(name)
	if err != nil {
		return false, errors.Wrapf(err, "matching site %q against %q", name, f.pattern)
	}
	return ok, nil
}

func (f *SiteFilter) String() string {
	return f.pattern
}
