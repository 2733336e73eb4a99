// Package region tags listing locations with configured geographic regions.
package region

import (
	"sort"
	"strings"
	"unicode"

	"go-hiring-tracker/internal/models"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips diacritics, so "Hà Nội" matches "ha noi".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.ToLower(result)
}

// Classify reports whether location contains any keyword.
// Matching ignores case and diacritics; blank keywords never match.
func Classify(location string, keywords []string) bool {
	loc := fold(location)
	if loc == "" {
		return false
	}
	for _, kw := range keywords {
		kw = fold(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(loc, kw) {
			return true
		}
	}
	return false
}

// Partition splits jobs into those whose location classifies and the rest,
// keeping order.
func Partition(jobs []models.Job, keywords []string) (in, out []models.Job) {
	for _, j := range jobs {
		if Classify(j.Location, keywords) {
			in = append(in, j)
		} else {
			out = append(out, j)
		}
	}
	return in, out
}

// Regions maps a region name to its keyword list.
type Regions map[string][]string

// Names returns the region names in sorted order.
func (r Regions) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Of returns every region location belongs to, sorted by name.
func (r Regions) Of(location string) []string {
	var out []string
	for _, name := range r.Names() {
		if Classify(location, r[name]) {
			out = append(out, name)
		}
	}
	return out
}

// Count returns how many jobs fall in the named region.
func (r Regions) Count(name string, jobs []models.Job) int {
	in, _ := Partition(jobs, r[name])
	return len(in)
}
