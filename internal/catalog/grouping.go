package catalog

import (
	"context"
	"fmt"
	"strings"
)

// CandidateFetcher fetches configurable records whose name matches any fragment
type CandidateFetcher interface {
	FetchConfigurableCandidates(ctx context.Context, nameFragments []string) ([]SourceProduct, error)
}

// GroupingStats makes the name-fragment heuristic observable
type GroupingStats struct {
	Simples      int `json:"simples"`
	Configurable int `json:"configurableInInput"`
	Candidates   int `json:"candidates"`
	Matched      int `json:"matched"`
	Standalone   int `json:"standalone"`
}

// Grouper partitions flat source records into families
type Grouper struct {
	fetcher CandidateFetcher
}

// NewGrouper creates a grouper backed by the given candidate fetcher
func NewGrouper(fetcher CandidateFetcher) *Grouper {
	return &Grouper{fetcher: fetcher}
}

// NameFragment derives a best-effort parent name fragment from a simple record name:
// the text before the first hyphen without its last space-separated token.
func NameFragment(name string) string {
	head := name
	if i := strings.Index(head, "-"); i >= 0 {
		head = head[:i]
	}
	tokens := strings.Split(head, " ")
	if len(tokens) > 0 {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.TrimSpace(strings.Join(tokens, " "))
}

// Group partitions records into configurable-backed families (fetch order)
// followed by standalone families (input order).
func (g *Grouper) Group(ctx context.Context, records []SourceProduct) ([]Family, *GroupingStats, error) {
	stats := &GroupingStats{}

	simples := make([]SourceProduct, 0, len(records))
	for _, record := range records {
		if record.IsConfigurable() {
			stats.Configurable++
			continue
		}
		simples = append(simples, record)
	}
	stats.Simples = len(simples)
	if len(simples) == 0 {
		return nil, stats, nil
	}

	seen := make(map[string]bool)
	fragments := make([]string, 0, len(simples))
	for _, simple := range simples {
		fragment := NameFragment(simple.Name)
		if fragment == "" || seen[strings.ToLower(fragment)] {
			continue
		}
		seen[strings.ToLower(fragment)] = true
		fragments = append(fragments, fragment)
	}

	var candidates []SourceProduct
	if len(fragments) > 0 {
		fetched, err := g.fetcher.FetchConfigurableCandidates(ctx, fragments)
		if err != nil {
			return nil, stats, fmt.Errorf("failed to fetch configurable candidates: %w", err)
		}
		candidates = dedupeCandidates(fetched)
	}
	stats.Candidates = len(candidates)

	families := make([]Family, len(candidates))
	for i := range candidates {
		families[i] = Family{Parent: &candidates[i], Children: []SourceProduct{}}
	}

	var standalone []Family
	for _, simple := range simples {
		matched := false
		for i := range families {
			if families[i].Parent.LinksChild(simple.ID) {
				families[i].Children = append(families[i].Children, simple)
				matched = true
				break
			}
		}
		if matched {
			stats.Matched++
			continue
		}
		standalone = append(standalone, Family{Children: []SourceProduct{simple}})
	}
	stats.Standalone = len(standalone)

	return append(families, standalone...), stats, nil
}

func dedupeCandidates(fetched []SourceProduct) []SourceProduct {
	seen := make(map[int]bool, len(fetched))
	out := make([]SourceProduct, 0, len(fetched))
	for _, candidate := range fetched {
		if !candidate.IsConfigurable() || seen[candidate.ID] {
			continue
		}
		seen[candidate.ID] = true
		out = append(out, candidate)
	}
	return out
}
