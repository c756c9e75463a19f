package semantic

import "sort"

// structuralBoost is spec.md §4.4's fixed additive bonus for a hit
// whose path also appears in a prior graph query's structural file set.
const structuralBoost = 0.15

// SemanticHit is one raw vector-search result before reranking.
type SemanticHit struct {
	EntityID string
	Path     string
	Score    float64
	Metadata map[string]string
}

// RerankSemanticHits implements rerankSemanticHits (spec.md §4.4):
// finalScore = semanticScore + structuralBoost, where structuralBoost
// is 0.15 iff the hit's normalized path is present in structuralFiles,
// else 0. Results are sorted descending by finalScore; ties keep their
// original relative order (stable sort).
func RerankSemanticHits(hits []SemanticHit, structuralFiles map[string]bool) []RankedHit {
	ranked := make([]RankedHit, len(hits))
	for i, h := range hits {
		boost := 0.0
		if structuralFiles[normalizePath(h.Path)] {
			boost = structuralBoost
		}
		ranked[i] = RankedHit{
			EntityID:        h.EntityID,
			Path:            h.Path,
			SemanticScore:   h.Score,
			StructuralBoost: boost,
			FinalScore:      h.Score + boost,
			Metadata:        h.Metadata,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}

func normalizePath(p string) string {
	out := make([]byte, 0, len(p))
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '\\' {
			c = '/'
		}
		out = append(out, c)
	}
	return string(out)
}
