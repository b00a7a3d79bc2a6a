package filter

import (
	"strings"

	"github.com/amishk599/statejobs/internal/model"
)

var _ model.JobFilter = (*TitleAndCountyFilter)(nil)

// TitleAndCountyFilter matches postings whose title contains any of the title
// keywords and whose county contains any of the county keywords.
// Matching is case-insensitive. Empty keyword lists are treated as "match all".
type TitleAndCountyFilter struct {
	titleKeywords []string
	counties      []string
}

// NewTitleAndCountyFilter returns a filter that requires both a title keyword
// match and a county match (case-insensitive substring).
func NewTitleAndCountyFilter(titleKeywords []string, counties []string) *TitleAndCountyFilter {
	return &TitleAndCountyFilter{
		titleKeywords: titleKeywords,
		counties:      counties,
	}
}

// Match returns true if the posting's title contains any title keyword and its
// county contains any county keyword. The feed county is used, falling back to
// the county from the detail page when the feed left it blank.
func (f *TitleAndCountyFilter) Match(job model.JobRecord) bool {
	if !containsAny(job.Title, f.titleKeywords) {
		return false
	}

	county := job.County
	if county == "" && job.Detail.LocationCounty != nil {
		county = *job.Detail.LocationCounty
	}
	return containsAny(county, f.counties)
}

func containsAny(s string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(strings.TrimSpace(kw))) {
			return true
		}
	}
	return false
}
