package graphstore

import (
	"context"
	"sort"
	"strings"

	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
)

// NeighborhoodResult is listEntityRelationshipsTraversal's output
// (spec.md §4.2): the set of nodes visited, the deduplicated edge
// list that connects them, and the depth actually used.
type NeighborhoodResult struct {
	Visited   map[string]parserengine.Entity
	Edges     []parserengine.Relationship
	DepthUsed int
}

// Neighborhood performs a breadth-first traversal from root up to
// depth hops (clamped to [1,10], default 1), optionally filtered by
// relationship type, deduplicating edges by (fromId,toId,type).
// Grounded algorithmically on MrWong99-glyphoxa's recursive-CTE
// Neighbors query, translated into a Go-side BFS loop so each depth
// step can apply the relationship-type filter without per-depth
// dynamic SQL (SPEC_FULL.md §4.2).
func (s *Store) Neighborhood(ctx context.Context, root string, depth int, relTypes []parserengine.RelationshipType) (NeighborhoodResult, error) {
	depth = clampDepth(depth)

	visited := make(map[string]parserengine.Entity)
	edgeSeen := make(map[string]bool)
	var edges []parserengine.Relationship

	rootEntity, ok, err := s.getEntity(ctx, root)
	if err != nil {
		return NeighborhoodResult{}, err
	}
	if ok {
		visited[root] = rootEntity
	}

	frontier := []string{root}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, id := range frontier {
			rels, err := s.GetRelationshipsForEntity(ctx, id)
			if err != nil {
				return NeighborhoodResult{}, err
			}
			for _, r := range rels {
				if !relTypeAllowed(r.Type, relTypes) {
					continue
				}
				key := edgeKey(r)
				if !edgeSeen[key] {
					edgeSeen[key] = true
					edges = append(edges, r)
				}

				other := r.ToID
				if r.FromID != id {
					other = r.FromID
				}
				if _, seen := visited[other]; seen {
					continue
				}
				entity, ok, err := s.getEntity(ctx, other)
				if err != nil {
					return NeighborhoodResult{}, err
				}
				if !ok {
					continue
				}
				visited[other] = entity
				next = append(next, other)
			}
		}
		frontier = next
	}

	return NeighborhoodResult{Visited: visited, Edges: edges, DepthUsed: depth}, nil
}

// ImpactResult is analyzeCodeImpactTraversal's output.
type ImpactResult struct {
	Direct     []parserengine.Entity
	Transitive []parserengine.Entity
	Outbound   []parserengine.Entity
}

// Impact computes direct inbound dependents (edges *→root), transitive
// dependents up to depth, and outbound dependencies (edges root→*). A
// visited set prevents cycles (spec.md §4.2, §9 invariant example:
// A←B←C calls, depth=1 → direct={B}; depth=2 → direct={B},
// transitive={C}).
func (s *Store) Impact(ctx context.Context, root string, depth int) (ImpactResult, error) {
	depth = clampDepth(depth)

	visited := map[string]bool{root: true}
	var direct, transitive []parserengine.Entity

	frontier := []string{root}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, id := range frontier {
			rels, err := s.GetRelationshipsForEntity(ctx, id)
			if err != nil {
				return ImpactResult{}, err
			}
			for _, r := range rels {
				if r.ToID != id {
					continue // only inbound edges (*->id) count as dependents
				}
				if visited[r.FromID] {
					continue
				}
				visited[r.FromID] = true

				entity, ok, err := s.getEntity(ctx, r.FromID)
				if err != nil {
					return ImpactResult{}, err
				}
				if !ok {
					continue
				}
				if d == 0 {
					direct = append(direct, entity)
				} else {
					transitive = append(transitive, entity)
				}
				next = append(next, r.FromID)
			}
		}
		frontier = next
	}

	outRels, err := s.GetRelationshipsForEntity(ctx, root)
	if err != nil {
		return ImpactResult{}, err
	}
	var outbound []parserengine.Entity
	for _, r := range outRels {
		if r.FromID != root {
			continue
		}
		entity, ok, err := s.getEntity(ctx, r.ToID)
		if err != nil {
			return ImpactResult{}, err
		}
		if ok {
			outbound = append(outbound, entity)
		}
	}

	return ImpactResult{Direct: direct, Transitive: transitive, Outbound: outbound}, nil
}

// ScoredEntity pairs an entity with resolveEntityCandidates' ranking
// score.
type ScoredEntity struct {
	Entity parserengine.Entity
	Score  float64
}

// Resolve ranks candidate entities for name, optionally biased by
// filePathHint (spec.md §4.2): exact case-insensitive name match
// +100, substring match +50, exact file hint +60, same-directory hint
// +20, with a small positional tiebreaker so results are stable.
func (s *Store) Resolve(ctx context.Context, name string, filePathHint string, topK int) ([]ScoredEntity, error) {
	exact, err := s.queryEntities(ctx, Query{Type: QueryTypeEntity, Filters: Filters{NameExact: name}})
	if err != nil {
		return nil, err
	}

	all, err := s.queryEntities(ctx, Query{Type: QueryTypeEntity})
	if err != nil {
		return nil, err
	}

	lowerName := strings.ToLower(name)
	hintDir := dirOf(filePathHint)

	seen := make(map[string]bool)
	var scored []ScoredEntity

	score := func(e parserengine.Entity, pos int) float64 {
		sc := 0.0
		if strings.EqualFold(e.Name, name) {
			sc += 100
		} else if strings.Contains(strings.ToLower(e.Name), lowerName) {
			sc += 50
		}
		if filePathHint != "" {
			if e.FilePath == filePathHint {
				sc += 60
			} else if dirOf(e.FilePath) == hintDir && hintDir != "" {
				sc += 20
			}
		}
		sc -= float64(pos) * 0.001
		return sc
	}

	for i, e := range exact.Entities {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		scored = append(scored, ScoredEntity{Entity: e, Score: score(e, i)})
	}
	for i, e := range all.Entities {
		if seen[e.ID] {
			continue
		}
		if !strings.Contains(strings.ToLower(e.Name), lowerName) {
			continue
		}
		seen[e.ID] = true
		scored = append(scored, ScoredEntity{Entity: e, Score: score(e, i)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// GetEntity returns the entity with the given id, used by the
// get_entity_source tool to locate the source span to read.
func (s *Store) GetEntity(ctx context.Context, id string) (parserengine.Entity, bool, error) {
	return s.getEntity(ctx, id)
}

func (s *Store) getEntity(ctx context.Context, id string) (parserengine.Entity, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, entity_type, file_path,
			start_line, start_col, start_index, end_line, end_col, end_index,
			content_hash, metadata
		FROM entities WHERE id = ?
	`, id)
	if err != nil {
		return parserengine.Entity{}, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return parserengine.Entity{}, false, rows.Err()
	}
	e, err := scanEntity(rows)
	if err != nil {
		return parserengine.Entity{}, false, err
	}
	return e, true, nil
}

func relTypeAllowed(t parserengine.RelationshipType, allowed []parserengine.RelationshipType) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

func edgeKey(r parserengine.Relationship) string {
	return r.FromID + "\x00" + r.ToID + "\x00" + string(r.Type)
}

func clampDepth(depth int) int {
	if depth <= 0 {
		return 1
	}
	if depth > 10 {
		return 10
	}
	return depth
}

func dirOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}
