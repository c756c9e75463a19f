package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/codegraphrag/codegraphrag-mcp/internal/bus"
)

// embedTaskTimeout bounds a single embedding-backfill call dispatched
// from the index:complete subscriber below.
const embedTaskTimeout = 30 * time.Second

// WireKnowledgeBus subscribes conductor to the Knowledge Bus topics
// spec.md §4.5 names as the consumer half of its pub/sub contract:
//
//   - "index:complete" drives the embedding backfill spec.md §4.3
//     requires ("on index:complete, the Semantic Agent queues
//     new/changed entity ids, generates embeddings, then upserts to
//     the Vector Store"). Each entity the Indexer Agent upserted gets
//     its own TaskEmbed dispatch, run in its own goroutine since
//     Bus.Publish delivers to subscribers synchronously and embedding
//     generation may block on a remote provider.
//   - "resources:adjusted" resizes every agent's concurrency bound to
//     the Resource Governor's new effective agent limit (spec.md
//     §4.6).
//
// Returns a single unsubscribe func tearing down both subscriptions.
func WireKnowledgeBus(b *bus.Bus, conductor *Conductor) (unsubscribe func()) {
	unsubIndex := b.Subscribe("index:complete", func(e bus.Entry) {
		stats, ok := e.Data.(IndexStats)
		if !ok || len(stats.EmbedTargets) == 0 {
			return
		}
		for _, target := range stats.EmbedTargets {
			target := target
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), embedTaskTimeout)
				defer cancel()
				if _, err := conductor.Dispatch(ctx, "embed", Task{
					Kind:    TaskEmbed,
					Payload: EmbedPayload{EntityID: target.EntityID, Code: target.Code, Metadata: target.Metadata},
				}); err != nil {
					slog.Warn("embedding backfill failed", "entityId", target.EntityID, "error", err)
				}
			}()
		}
	})

	unsubResources := b.Subscribe("resources:adjusted", func(e bus.Entry) {
		data, ok := e.Data.(map[string]any)
		if !ok {
			return
		}
		limit, ok := data["newAgentLimit"].(int)
		if !ok {
			return
		}
		conductor.ResizeAll(limit)
	})

	return func() {
		unsubIndex()
		unsubResources()
	}
}
