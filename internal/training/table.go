// Package training holds the static labeled query table used as the
// dominant reranking signal.
package training

import (
	"sort"
	"strings"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	"github.com/fyrsmithlabs/assessd/internal/query"
)

// Partial-credit levels for Overlap.
const (
	ExactScore     = 1.0
	SubstringScore = 0.8
	// OverlapScale scales the Jaccard/coverage blend of the best
	// overlapping training query.
	OverlapScale = 0.6
	// PresenceBoost is added when the URL is labeled for any query.
	PresenceBoost = 0.05
)

// Row is one labeled (query, relevant URL) pair.
type Row struct {
	Query string `json:"query"`
	URL   string `json:"url"`
}

type entry struct {
	query  string
	tokens map[string]struct{}
	urls   map[string]struct{}
	// raw keeps labeled URLs in first-seen order, as written.
	raw []string
}

// Table maps normalized query text to the set of relevant URLs. It is
// immutable after construction and safe for concurrent reads.
type Table struct {
	entries map[string]*entry
	order   []string
	byURL   map[string][]*entry
}

// NewTable builds a table from labeled rows. Queries are normalized with
// query.Normalize and URLs with catalog.NormalizeURL; blank rows are
// skipped.
func NewTable(rows []Row) *Table {
	t := &Table{
		entries: make(map[string]*entry),
		byURL:   make(map[string][]*entry),
	}
	for _, r := range rows {
		q := query.Normalize(r.Query)
		u := catalog.NormalizeURL(r.URL)
		if q == "" || u == "" {
			continue
		}
		e, ok := t.entries[q]
		if !ok {
			e = &entry{query: q, tokens: wordSet(q), urls: make(map[string]struct{})}
			t.entries[q] = e
			t.order = append(t.order, q)
		}
		if _, dup := e.urls[u]; dup {
			continue
		}
		e.urls[u] = struct{}{}
		e.raw = append(e.raw, strings.TrimSpace(r.URL))
		t.byURL[u] = append(t.byURL[u], e)
	}
	return t
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

// Len returns the number of distinct queries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Queries returns the normalized queries in first-seen order.
func (t *Table) Queries() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.order...)
}

// Relevant returns the URLs labeled for q (exact match after
// normalization), in first-seen order.
func (t *Table) Relevant(q string) []string {
	if t == nil {
		return nil
	}
	e, ok := t.entries[query.Normalize(q)]
	if !ok {
		return nil
	}
	return append([]string(nil), e.raw...)
}

// Contains reports whether url is labeled for any query.
func (t *Table) Contains(url string) bool {
	if t == nil {
		return false
	}
	_, ok := t.byURL[catalog.NormalizeURL(url)]
	return ok
}

// URLs returns every labeled URL (normalized), sorted.
func (t *Table) URLs() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.byURL))
	for u := range t.byURL {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Overlap scores how strongly the table ties url to the query text, in
// [0,1]:
//   - ExactScore when url is labeled for this exact query;
//   - otherwise the best of SubstringScore (query and a training query
//     labeling url contain one another) and OverlapScale times the
//     Jaccard/coverage blend against training queries labeling url;
//   - plus PresenceBoost whenever url is labeled at all, capped at 1.
//
// A nil or empty table scores 0.
func (t *Table) Overlap(normalized, url string) float64 {
	if t.Len() == 0 {
		return 0
	}
	u := catalog.NormalizeURL(url)
	labeled := t.byURL[u]
	if len(labeled) == 0 {
		return 0
	}
	if e, ok := t.entries[normalized]; ok {
		if _, hit := e.urls[u]; hit {
			return ExactScore
		}
	}

	qTokens := wordSet(normalized)
	var best float64
	for _, e := range labeled {
		if normalized != "" && (strings.Contains(e.query, normalized) || strings.Contains(normalized, e.query)) {
			best = max(best, SubstringScore)
			continue
		}
		if len(qTokens) == 0 || len(e.tokens) == 0 {
			continue
		}
		inter := 0
		for w := range qTokens {
			if _, ok := e.tokens[w]; ok {
				inter++
			}
		}
		union := len(qTokens) + len(e.tokens) - inter
		jaccard := float64(inter) / float64(union)
		coverage := float64(inter) / float64(len(qTokens))
		best = max(best, (0.5*jaccard+0.5*coverage)*OverlapScale)
	}
	return min(best+PresenceBoost, 1)
}
