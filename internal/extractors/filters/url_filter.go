// Package filters decides which story urls may be fetched for extraction.
package filters

import (
	"net/url"
	"strings"
)

// URLFilter defines filtering rules for a specific domain
type URLFilter struct {
	Domain       string   `yaml:"domain"`
	Block        bool     `yaml:"block"`         // Reject every url on the domain
	AllowedPaths []string `yaml:"allowed_paths"` // If empty, allow all paths
	BlockedPaths []string `yaml:"blocked_paths"` // Takes priority over AllowedPaths
}

// FilterRegistry manages URL filtering rules
type FilterRegistry struct {
	filters []URLFilter
}

// NewFilterRegistry creates a registry holding filters.
func NewFilterRegistry(filters ...URLFilter) *FilterRegistry {
	r := &FilterRegistry{filters: make([]URLFilter, 0, len(filters))}
	for _, f := range filters {
		r.Register(f)
	}
	return r
}

// Register adds a new URL filter
func (r *FilterRegistry) Register(filter URLFilter) {
	filter.Domain = strings.ToLower(strings.TrimPrefix(filter.Domain, "www."))
	r.filters = append(r.filters, filter)
}

// ShouldProcess reports whether urlStr may be fetched. Only absolute
// http(s) urls qualify; the first filter whose domain matches the host
// (or a parent of it) decides the rest.
func (r *FilterRegistry) ShouldProcess(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))

	// Find matching filter for this URL's domain
	var matchedFilter *URLFilter
	for i := range r.filters {
		d := r.filters[i].Domain
		if host == d || strings.HasSuffix(host, "."+d) {
			matchedFilter = &r.filters[i]
			break
		}
	}

	// If no filter matches, allow processing
	if matchedFilter == nil {
		return true
	}
	if matchedFilter.Block {
		return false
	}

	// Check blocked paths first (highest priority)
	for _, blocked := range matchedFilter.BlockedPaths {
		if strings.HasPrefix(u.Path, blocked) {
			return false
		}
	}

	// If no allowed paths specified, allow all (except blocked)
	if len(matchedFilter.AllowedPaths) == 0 {
		return true
	}

	for _, allowed := range matchedFilter.AllowedPaths {
		if strings.HasPrefix(u.Path, allowed) {
			return true
		}
	}

	// Doesn't match any allowed path
	return false
}
