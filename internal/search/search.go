// Package search implements the in-memory filter, sort and suggest engine
// behind the /v1/search endpoints. It is pure: callers hand it a snapshot of
// a collection and a set of filters and get a result back, with no I/O
// and no mutation of the input slice.
package search

import (
	"sort"
	"strings"
	"time"
)

// Sort directions accepted in Filters.SortOrder. Anything else falls back to
// descending.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Filters holds the caller's filter and sort criteria. Zero-valued fields
// are inactive; active predicates are AND-combined.
type Filters struct {
	Query     string   `json:"query,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Author    string   `json:"author,omitempty"`
	Status    string   `json:"status,omitempty"`
	DateFrom  string   `json:"dateFrom,omitempty"`
	DateTo    string   `json:"dateTo,omitempty"`
	SortBy    string   `json:"sortBy,omitempty"`
	SortOrder string   `json:"sortOrder,omitempty"`
}

// Result is a filtered, sorted view of the input collection. Total counts the
// matching items, not the size of the original collection.
type Result[T any] struct {
	Items       []T      `json:"items"`
	Total       int      `json:"total"`
	Filters     Filters  `json:"filters"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Descriptor tells the engine how to read one entity kind. Nil accessors mark
// predicates that do not apply to the kind: a nil Tags accessor makes the
// tags filter match nothing, mirroring how a tag search over comments should
// come back empty rather than ignore the predicate.
type Descriptor[T any] struct {
	// TextFields returns the values the free-text query is matched against.
	TextFields func(T) []string
	// Tags returns the record's own tags, or nil when the kind has none.
	Tags func(T) []string
	// Author returns the author field, or nil when the kind has none.
	Author func(T) string
	// Status returns the moderation status, or nil when the kind has none.
	Status func(T) string
	// Date returns the record's primary date field as a string.
	Date func(T) string
	// SortKeys maps a SortBy value to a string accessor compared
	// lexicographically. The "date" and "relevance" keys are handled by the
	// engine itself and must not appear here.
	SortKeys map[string]func(T) string
	// SizeKey, when non-nil, enables SortBy "size" compared numerically.
	SizeKey func(T) int64
	// SuggestionTokens splits a record into the candidate suggestion terms.
	SuggestionTokens func(T) []string
}

const maxSuggestions = 5

// Run filters, sorts and annotates items according to f. The input slice is
// never modified; the result holds a fresh slice.
func Run[T any](items []T, f Filters, d Descriptor[T]) Result[T] {
	matched := make([]T, 0, len(items))
	for _, item := range items {
		if d.matches(item, f) {
			matched = append(matched, item)
		}
	}

	d.sortItems(matched, f)

	res := Result[T]{
		Items:   matched,
		Total:   len(matched),
		Filters: f,
	}
	if f.Query != "" {
		res.Suggestions = d.suggest(matched, f.Query)
	}
	return res
}

func (d Descriptor[T]) matches(item T, f Filters) bool {
	if q := strings.ToLower(f.Query); q != "" {
		found := false
		for _, field := range d.TextFields(item) {
			if strings.Contains(strings.ToLower(field), q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.Tags) > 0 {
		if d.Tags == nil || !anyTagMatches(d.Tags(item), f.Tags) {
			return false
		}
	}

	if f.Author != "" {
		if d.Author == nil {
			return false
		}
		if !strings.Contains(strings.ToLower(d.Author(item)), strings.ToLower(f.Author)) {
			return false
		}
	}

	if f.Status != "" {
		if d.Status == nil || d.Status(item) != f.Status {
			return false
		}
	}

	if f.DateFrom != "" || f.DateTo != "" {
		when, ok := parseWhen(d.Date(item))
		if !ok {
			return false
		}
		if f.DateFrom != "" {
			from, ok := parseWhen(f.DateFrom)
			if ok && when.Before(from) {
				return false
			}
		}
		if f.DateTo != "" {
			to, ok := parseWhen(f.DateTo)
			if ok && when.After(endOfDay(to, f.DateTo)) {
				return false
			}
		}
	}

	return true
}

// anyTagMatches implements the OR semantics of the tags filter: a record
// matches when any requested tag is a substring of any of its own tags.
func anyTagMatches(own, requested []string) bool {
	for _, want := range requested {
		w := strings.ToLower(want)
		for _, have := range own {
			if strings.Contains(strings.ToLower(have), w) {
				return true
			}
		}
	}
	return false
}

func (d Descriptor[T]) sortItems(items []T, f Filters) {
	key := f.SortBy
	if key == "" {
		key = "date"
	}
	desc := f.SortOrder != OrderAsc

	var less func(a, b T) bool
	switch {
	case key == "relevance":
		// relevance preserves the filter-stage order
		return
	case key == "date":
		less = func(a, b T) bool {
			ta, aok := parseWhen(d.Date(a))
			tb, bok := parseWhen(d.Date(b))
			// records with unparsable dates sort last either direction
			if aok != bok {
				return aok
			}
			if !aok {
				return false
			}
			if desc {
				return ta.After(tb)
			}
			return ta.Before(tb)
		}
	case key == "size" && d.SizeKey != nil:
		less = func(a, b T) bool {
			if desc {
				return d.SizeKey(a) > d.SizeKey(b)
			}
			return d.SizeKey(a) < d.SizeKey(b)
		}
	default:
		accessor, ok := d.SortKeys[key]
		if !ok {
			return
		}
		less = func(a, b T) bool {
			va := strings.ToLower(accessor(a))
			vb := strings.ToLower(accessor(b))
			if desc {
				return va > vb
			}
			return va < vb
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

// suggest collects whole tokens from the matched records that contain the
// query, deduplicated in first-seen order and capped at maxSuggestions.
func (d Descriptor[T]) suggest(matched []T, query string) []string {
	q := strings.ToLower(query)
	seen := make(map[string]struct{})
	var out []string
	for _, item := range matched {
		for _, token := range d.SuggestionTokens(item) {
			if len(token) <= 2 {
				continue
			}
			lower := strings.ToLower(token)
			if !strings.Contains(lower, q) {
				continue
			}
			if _, dup := seen[lower]; dup {
				continue
			}
			seen[lower] = struct{}{}
			out = append(out, token)
			if len(out) == maxSuggestions {
				return out
			}
		}
	}
	return out
}

// parseWhen accepts the two date shapes stored on records, a bare calendar
// date or a full RFC 3339 timestamp.
func parseWhen(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// endOfDay widens a bare-date upper bound to the end of that day so the
// bound stays inclusive against timestamped records.
func endOfDay(t time.Time, raw string) time.Time {
	if len(raw) == len("2006-01-02") {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}
