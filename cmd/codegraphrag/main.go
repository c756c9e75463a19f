// Package main is the entry point for the codegraphrag-mcp server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	mcpserver "github.com/ThinkInAIXYZ/go-mcp/server"
	mcptransport "github.com/ThinkInAIXYZ/go-mcp/transport"

	"github.com/codegraphrag/codegraphrag-mcp/internal/agents"
	"github.com/codegraphrag/codegraphrag-mcp/internal/bus"
	"github.com/codegraphrag/codegraphrag-mcp/internal/config"
	"github.com/codegraphrag/codegraphrag-mcp/internal/dispatcher"
	"github.com/codegraphrag/codegraphrag-mcp/internal/governor"
	"github.com/codegraphrag/codegraphrag-mcp/internal/graphstore"
	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
	"github.com/codegraphrag/codegraphrag-mcp/internal/semantic"
	"github.com/codegraphrag/codegraphrag-mcp/internal/vectorstore"
	"github.com/codegraphrag/codegraphrag-mcp/pkg/embedder"
	"github.com/codegraphrag/codegraphrag-mcp/pkg/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.SetupLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen, err := embedder.NewGeneratorFromOptions(embedder.Options{
		Provider:      embedder.Provider(cfg.EmbeddingProvider),
		BaseURL:       cfg.EmbeddingBaseURL,
		APIKey:        cfg.EmbeddingAPIKey,
		TimeoutMs:     cfg.EmbeddingTimeoutMs,
		Concurrency:   cfg.EmbeddingConcurrency,
		MaxBatchSize:  cfg.EmbeddingMaxBatch,
		Headers:       cfg.EmbeddingHeaders,
		AutoPull:      cfg.EmbeddingAutoPull,
		WarmupText:    cfg.EmbeddingWarmupText,
		CheckServer:   cfg.EmbeddingCheckServer,
		PullTimeoutMs: cfg.EmbeddingPullTimeMs,
		Quantized:     cfg.EmbeddingQuantized,
		LocalPath:     cfg.EmbeddingLocalPath,
		Dimension:     cfg.EmbeddingDimension,
		Model:         cfg.EmbeddingModel,
	})
	if err != nil {
		log.Fatalf("failed to build embedding generator: %v", err)
	}

	dbPath := cfg.ResolvedDatabasePath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		slog.Warn("failed to create database directory", "path", dbPath, "error", err)
	}

	graph, err := graphstore.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open graph store at %s: %v", dbPath, err)
	}
	defer graph.Close()

	vectors, err := vectorstore.Open(dbPath, gen.Dimension())
	if err != nil {
		log.Fatalf("failed to open vector store at %s: %v", dbPath, err)
	}
	defer vectors.Close()

	knowledgeBus := bus.New(cfg.BusRingBufferSize, cfg.BusDirectQueueSize)
	defer knowledgeBus.Stop()

	gov := governor.New(governor.Bounds{
		MaxMemoryMB:         float64(cfg.MaxMemoryMB),
		MaxCPUPercent:       float64(cfg.MaxCPUPercent),
		MaxConcurrentAgents: cfg.MaxConcurrentAgents,
		MaxTaskQueueSize:    cfg.MaxTaskQueueSize,
	}, knowledgeBus)
	gov.Start(ctx)
	defer gov.Stop()

	cache, err := semantic.New(cfg.SemanticCacheCapacity, semantic.DefaultMaxBytes, time.Duration(cfg.SemanticCacheTTLSeconds)*time.Second)
	if err != nil {
		log.Fatalf("failed to build semantic cache: %v", err)
	}

	engine := parserengine.NewEngine(int64(cfg.ParserCacheBytes))
	exclude := append(config.DefaultExcludeDirs(), cfg.ExcludePatterns...)
	scanner := parserengine.NewScanner(exclude, 0)

	parserAgent := agents.NewParserAgent("parser-1", engine, knowledgeBus, agents.Capabilities{MaxConcurrency: cfg.MaxConcurrentAgents})
	indexerAgent := agents.NewIndexerAgent("indexer-1", scanner, engine, graph, knowledgeBus, agents.Capabilities{MaxConcurrency: 2})
	queryAgent := agents.NewQueryAgent("query-1", graph, agents.Capabilities{MaxConcurrency: cfg.MaxConcurrentAgents})
	semanticAgent := agents.NewSemanticAgent("semantic-1", gen, vectors, cache, knowledgeBus, agents.Capabilities{MaxConcurrency: cfg.EmbeddingConcurrency})
	conductor := agents.NewConductor(parserAgent, indexerAgent, queryAgent, semanticAgent)
	unwireBus := agents.WireKnowledgeBus(knowledgeBus, conductor)
	defer unwireBus()

	if primed, err := semantic.Warmup(ctx, cache, warmupGraphSource{graph}, gen, warmupNeighborhoodSource{vectors}, cfg.SemanticWarmupCount, 10); err != nil {
		slog.Warn("semantic cache warmup failed", "error", err)
	} else {
		slog.Info("semantic cache warmup complete", "primed", primed)
	}

	var watcher *parserengine.Watcher
	if !cfg.DisableCodeWatch {
		watcher, err = parserengine.StartWatcher(ctx, cfg.Workspace, scanner)
		if err != nil {
			slog.Warn("failed to start file watcher", "error", err)
		} else {
			go watchLoop(ctx, watcher, engine, graph, knowledgeBus)
		}
	}

	disp := dispatcher.New(conductor, graph, vectors, cache, knowledgeBus, gov, engine, scanner, cfg.Workspace, cfg.CloneThreshold)

	var t mcptransport.ServerTransport
	if cfg.MCPStreamableHTTP {
		addr := cfg.MCPStreamableHTTPAddr
		if addr == "" {
			addr = ":3000"
		}
		slog.Info("SSE transport enabled", "addr", addr)
		t, err = mcptransport.NewSSEServerTransport(addr)
		if err != nil {
			log.Fatalf("failed to initialize SSE transport: %v", err)
		}
	} else {
		slog.Info("starting MCP over stdio (default)")
		t = mcptransport.NewStdioServerTransport()
	}

	srv, err := mcpserver.NewServer(
		t,
		mcpserver.WithServerInfo(protocol.Implementation{
			Name:    "codegraphrag-mcp",
			Version: version.Version,
		}),
		mcpserver.WithInstructions("codegraphrag-mcp indexes this workspace into a code graph and vector store; call index on first use."),
	)
	if err != nil {
		log.Fatalf("failed to create MCP server: %v", err)
	}

	if err := disp.RegisterTools(srv); err != nil {
		log.Fatalf("failed to register tools: %v", err)
	}

	go func() {
		<-ctx.Done()
		if watcher != nil {
			watcher.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Run(); err != nil {
		log.Fatalf("server run error: %v", err)
	}
}

// watchLoop applies file-watcher changes one at a time, outside the
// bulk TaskIndex path, and publishes a summary per change so
// subscribers (e.g. a future live-reload client) can react incrementally.
func watchLoop(ctx context.Context, w *parserengine.Watcher, engine *parserengine.Engine, graph *graphstore.Store, b *bus.Bus) {
	for change := range w.Changes() {
		var stats agents.IndexStats
		agents.ApplyChange(ctx, engine, graph, change, &stats)
		b.Publish(bus.Entry{Topic: "watch:file_changed", Data: stats, Source: change.FilePath})
	}
}

// warmupGraphSource adapts graphstore.Store to semantic.GraphSource.
type warmupGraphSource struct{ graph *graphstore.Store }

func (w warmupGraphSource) MostReferencedEntities(ctx context.Context, limit int) ([]semantic.PopularEntity, error) {
	entities, err := w.graph.MostReferencedEntities(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]semantic.PopularEntity, len(entities))
	for i, e := range entities {
		out[i] = semantic.PopularEntity{ID: e.ID, Name: e.Name, FilePath: e.FilePath}
	}
	return out, nil
}

// warmupNeighborhoodSource adapts vectorstore.Store to
// semantic.NeighborhoodSource by searching an entity's own stored
// embedding for its nearest neighbors.
type warmupNeighborhoodSource struct{ vectors *vectorstore.Store }

func (w warmupNeighborhoodSource) TopKNeighborhood(ctx context.Context, entityID string, k int) ([]semantic.SemanticHit, error) {
	vec, _, found, err := w.vectors.GetVector(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	hits, err := w.vectors.Search(ctx, vec, k, nil)
	if err != nil {
		return nil, err
	}
	out := make([]semantic.SemanticHit, 0, len(hits))
	for _, h := range hits {
		if h.EntityID == entityID {
			continue
		}
		out = append(out, semantic.SemanticHit{
			EntityID: h.EntityID,
			Path:     h.Metadata.Path,
			Score:    h.Score,
			Metadata: map[string]string{"type": h.Metadata.Type, "name": h.Metadata.Name, "language": h.Metadata.Language},
		})
	}
	return out, nil
}
