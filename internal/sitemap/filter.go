package sitemap

import "strings"

// Filter keeps leaf URLs that contain every Include substring and no Exclude substring.
type Filter struct {
	Include []string
	Exclude []string
}

func (f Filter) Match(u string) bool {
	for _, s := range f.Include {
		if s != "" && !strings.Contains(u, s) {
			return false
		}
	}
	for _, s := range f.Exclude {
		if s != "" && strings.Contains(u, s) {
			return false
		}
	}
	return true
}

func (f Filter) Apply(urls []string) []string {
	if len(f.Include) == 0 && len(f.Exclude) == 0 {
		return urls
	}
	kept := make([]string, 0, len(urls))
	for _, u := range urls {
		if f.Match(u) {
			kept = append(kept, u)
		}
	}
	return kept
}
