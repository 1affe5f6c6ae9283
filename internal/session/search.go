package session

import (
	"path"
	"sort"
	"strings"

	fuzzysearch "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"
	"github.com/sysreinstaller/vhdget/internal/domain"
)

// SearchResult is a filtered-view entry ranked against a query
type SearchResult struct {
	Entry          domain.ImageEntry
	MatchedIndexes []int // byte offsets into the lowercased title
	Score          int
}

// Search fuzzy-matches query against the titles of the filtered view.
// Results are best first. An empty query returns the view unranked.
func (m *Manager) Search(query string) []SearchResult {
	view := m.Filtered()

	query = strings.TrimSpace(query)
	if query == "" {
		results := make([]SearchResult, len(view))
		for i, e := range view {
			results[i] = SearchResult{Entry: e}
		}
		return results
	}

	titles := make([]string, len(view))
	for i, e := range view {
		titles[i] = strings.ToLower(e.Title())
	}

	matches := fuzzy.Find(strings.ToLower(query), titles)
	results := make([]SearchResult, len(matches))
	for i, match := range matches {
		results[i] = SearchResult{
			Entry:          view[match.Index],
			MatchedIndexes: match.MatchedIndexes,
			Score:          match.Score,
		}
	}
	return results
}

// Suggest returns catalog filenames close to name, best first, for
// "did you mean" hints when a requested file is not in the catalog.
func (m *Manager) Suggest(name string, limit int) []string {
	m.mu.Lock()
	filenames := make([]string, len(m.entries))
	for i, e := range m.entries {
		filenames[i] = e.Filename
	}
	m.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" || len(filenames) == 0 {
		return nil
	}

	ranks := fuzzysearch.RankFindNormalizedFold(name, filenames)
	if len(ranks) == 0 {
		// Fall back to the stem so "win10.iso" still suggests "win10.vhd".
		stem := strings.TrimSuffix(name, path.Ext(name))
		if stem == name || stem == "" {
			return nil
		}
		ranks = fuzzysearch.RankFindNormalizedFold(stem, filenames)
	}
	sort.Sort(ranks)

	suggestions := make([]string, 0, len(ranks))
	for _, r := range ranks {
		if limit > 0 && len(suggestions) == limit {
			break
		}
		suggestions = append(suggestions, r.Target)
	}
	return suggestions
}
