// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command portfolio is the CLI for the portfolio retrieval engine.
//
// Usage:
//
//	portfolio index "docs/**/*.md" --collection kb
//	portfolio query "how does batching work" --collection kb --rerank
//	portfolio graph docs/*.md --question "who maintains the scheduler"
//	portfolio maintain reembed --collection kb
//	portfolio eval run --collection kb --k 5
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/portfolio/pkg/chunker"
	"github.com/kadirpekel/portfolio/pkg/config"
	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/evaluation"
	"github.com/kadirpekel/portfolio/pkg/graphrag"
	"github.com/kadirpekel/portfolio/pkg/ingest"
	"github.com/kadirpekel/portfolio/pkg/maintenance"
	"github.com/kadirpekel/portfolio/pkg/pipeline"
	"github.com/kadirpekel/portfolio/pkg/registry"
	"github.com/kadirpekel/portfolio/pkg/store"
	"github.com/kadirpekel/portfolio/pkg/vector"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Index    IndexCmd    `cmd:"" help:"Ingest files into a collection."`
	Query    QueryCmd    `cmd:"" help:"Answer a question against a collection."`
	Graph    GraphCmd    `cmd:"" help:"Build and query a knowledge graph."`
	Maintain MaintainCmd `cmd:"" help:"Repository maintenance operations."`
	Eval     EvalCmd     `cmd:"" help:"Retrieval quality evaluation."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFormat string `help:"Log format (simple or verbose)."`
}

func (cli *CLI) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cli.Config != "" {
		cfg, err = config.Load(cli.Config)
	} else {
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Logging.Format = cli.LogFormat
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ensureCollection fetches the named collection, creating it on first
// use.
func ensureCollection(ctx context.Context, repo store.Repository, name string) (*store.Collection, error) {
	collection, err := repo.GetCollection(ctx, name)
	if err == nil {
		return collection, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return repo.CreateCollection(ctx, name, nil)
}

// ensureIndex creates the vector index sized to the configured
// embedder. Providers report dimensions through a probe embedding.
func ensureIndex(ctx context.Context, components *config.Components, indexID string) error {
	probe, err := components.Embedder.Embed(ctx, "dimension probe", embedder.Options{})
	if err != nil {
		return fmt.Errorf("failed to probe embedder dimensions: %w", err)
	}
	return components.Vector.CreateIndex(ctx, indexID, vector.Index{Dimensions: probe.Dimensions})
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("portfolio version %s\n", version)
	return nil
}

// IndexCmd ingests files into a collection.
type IndexCmd struct {
	Paths      []string `arg:"" help:"Files or glob patterns to ingest, or a directory with --watch."`
	Collection string   `help:"Target collection." default:"default"`
	Watch      bool     `help:"Watch a directory and ingest files as they appear or change."`
}

func (c *IndexCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	components, err := config.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()

	collection, err := ensureCollection(ctx, components.Repo, c.Collection)
	if err != nil {
		return err
	}
	if err := ensureIndex(ctx, components, c.Collection); err != nil {
		return err
	}

	pl, err := ingest.NewPipeline(components.Embedder, components.Vector, components.Limiter, cfg.Ingestion)
	if err != nil {
		return err
	}
	pl.WithRepository(components.Repo, collection.ID)

	var stats *ingest.Stats
	if c.Watch {
		stats, err = c.runWatch(ctx, pl)
	} else {
		var files []ingest.FileItem
		files, err = ingest.Discover(c.Paths)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no files match %v", c.Paths)
		}
		stats, err = pl.Run(ctx, c.Collection, files)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("files: %d (failed %d, unchanged %d)\n", stats.Files, stats.FailedFiles, stats.SkippedFiles)
	fmt.Printf("chunks: %d (failed %d, rate limited %d)\n", stats.Chunks, stats.FailedChunks, stats.RateLimited)
	fmt.Printf("stored: %d\n", stats.Stored)
	return nil
}

// runWatch streams the directory's current files, then watch events,
// into the pipeline until interrupted.
func (c *IndexCmd) runWatch(ctx context.Context, pl *ingest.Pipeline) (*ingest.Stats, error) {
	if len(c.Paths) != 1 {
		return nil, fmt.Errorf("--watch takes exactly one directory")
	}
	root := c.Paths[0]
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("--watch requires a directory, got %q", root)
	}

	watcher, err := ingest.NewWatcher(ctx, root)
	if err != nil {
		return nil, err
	}

	items := make(chan ingest.FileItem, 256)
	go func() {
		defer close(items)
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			select {
			case items <- ingest.FileItem{Path: path, Type: ingest.DetectType(path)}:
				return nil
			case <-ctx.Done():
				return filepath.SkipAll
			}
		})
		for {
			select {
			case item, ok := <-watcher.Items():
				if !ok {
					return
				}
				select {
				case items <- item:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Printf("watching %s (Ctrl+C to stop)\n", root)
	return pl.RunStream(ctx, c.Collection, items)
}

// QueryCmd answers a question against an indexed collection.
type QueryCmd struct {
	Question    string `arg:"" help:"The question to answer."`
	Collection  string `help:"Collection to search." default:"default"`
	Mode        string `help:"Retrieval mode." enum:"vector,fulltext,hybrid" default:"vector"`
	K           int    `help:"Result count (0 uses the configured top_k)."`
	Rerank      bool   `help:"Rerank results with the LLM."`
	SelfCorrect bool   `name:"self-correct" help:"Iteratively refine the search until results are sufficient."`
	NoAnswer    bool   `name:"no-answer" help:"Print retrieved passages without generating an answer."`
}

func (c *QueryCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	components, err := config.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()

	adapters := components.Adapters()
	retriever, err := buildRetriever(adapters, cfg, c.Mode, c.Collection)
	if err != nil {
		return err
	}

	k := c.K
	if k <= 0 {
		k = cfg.Query.TopK
	}

	processor, err := pipeline.NewProcessor(components.LLM)
	if err != nil {
		return err
	}
	pc := pipeline.New(c.Question)
	pc.Adapters = adapters
	pc = processor.Process(ctx, pc, pipeline.ProcessorOptions{
		Skip: cfg.Query.Skip,
		HyDE: cfg.Query.HyDE,
	})

	var stages []pipeline.Stage
	if c.SelfCorrect {
		loop, err := pipeline.NewSearchLoop(components.LLM)
		if err != nil {
			return err
		}
		search := func(ctx context.Context, query string) ([]pipeline.Result, error) {
			return retriever.Retrieve(ctx, query, k)
		}
		stages = append(stages, loop.Stage(search, pipeline.SearchLoopOptions{}))
	} else {
		composer, err := pipeline.NewComposer(retriever)
		if err != nil {
			return err
		}
		stages = append(stages, composer.Stage(k))
	}

	if c.Rerank {
		reranker, err := pipeline.NewLLMReranker(components.LLM)
		if err != nil {
			return err
		}
		// Bound as a per-call override; the stage resolves it from the
		// Context's adapter layer.
		pc.Adapters = pc.Adapters.With(registry.CapReranker, reranker)
		stages = append(stages, pipeline.RerankStage(nil, pipeline.RerankOptions{
			TopN:      cfg.Query.RerankTopN,
			Threshold: cfg.Query.RerankThreshold,
		}))
	}

	if !c.NoAnswer {
		answerer, err := pipeline.NewAnswerer(components.LLM)
		if err != nil {
			return err
		}
		stages = append(stages, answerer.Stage(pipeline.AnswerOptions{}))
	}

	pc = pipeline.Run(ctx, pc, stages...)
	if pc.Err != nil {
		return pc.Err
	}

	if c.NoAnswer {
		printResults(pc.Results)
		return nil
	}
	fmt.Println(pc.Answer)
	if pc.Grounding != nil && !pc.Grounding.Grounded {
		fmt.Println("\n(warning: answer may not be grounded in the retrieved passages)")
	}
	if len(pc.Results) > 0 {
		fmt.Println("\nSources:")
		printResults(pc.Results)
	}
	return nil
}

// buildRetriever resolves the embedder and vector store through the
// adapter layers rather than reading components directly, so per-call
// overrides reach the retriever too.
func buildRetriever(adapters *registry.AdapterSet, cfg *config.Config, mode, indexID string) (pipeline.Retriever, error) {
	emb, err := registry.Resolve[embedder.Embedder](registry.CapEmbedder, adapters)
	if err != nil {
		return nil, err
	}
	vectorStore, err := registry.Resolve[vector.Store](registry.CapVectorStore, adapters)
	if err != nil {
		return nil, err
	}

	switch mode {
	case "vector":
		return pipeline.NewVectorRetriever(emb, vectorStore, indexID, vector.SearchOptions{})
	case "fulltext":
		return pipeline.NewFulltextRetriever(vectorStore, indexID, vector.FulltextOptions{})
	case "hybrid":
		vectorRetriever, err := pipeline.NewVectorRetriever(emb, vectorStore, indexID, vector.SearchOptions{})
		if err != nil {
			return nil, err
		}
		fulltextRetriever, err := pipeline.NewFulltextRetriever(vectorStore, indexID, vector.FulltextOptions{})
		if err != nil {
			return nil, err
		}
		return pipeline.NewHybridRetriever(vectorRetriever, fulltextRetriever, cfg.Query.HybridAlpha)
	default:
		return nil, fmt.Errorf("unknown retrieval mode %q", mode)
	}
}

func printResults(results []pipeline.Result) {
	for i, result := range results {
		content := strings.TrimSpace(result.Content)
		if len(content) > 160 {
			content = content[:160] + "..."
		}
		content = strings.ReplaceAll(content, "\n", " ")
		fmt.Printf("%2d. [%.3f] %s\n    %s\n", i+1, result.Score, result.Source, content)
	}
}

// GraphCmd builds a knowledge graph from files and optionally answers
// a question against it.
type GraphCmd struct {
	Paths     []string `arg:"" help:"Files or glob patterns to build the graph from."`
	Graph     string   `help:"Graph identifier." default:"default"`
	Levels    int      `help:"Community hierarchy levels above the base partition."`
	Summarize bool     `help:"Generate community summaries after building." default:"true" negatable:""`
	Question  string   `help:"Question to answer against the built graph."`
	Mode      string   `help:"Graph search mode." enum:"local,global,hybrid" default:"local"`
}

func (c *GraphCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	components, err := config.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()

	texts, err := c.chunkFiles(ctx, cfg)
	if err != nil {
		return err
	}

	extractor, err := graphrag.NewExtractor(components.LLM, cfg.GraphRAG.Extractor)
	if err != nil {
		return err
	}
	builderCfg := cfg.GraphRAG.Builder
	if c.Levels > 0 {
		builderCfg.HierarchyLevels = c.Levels
	}

	graphStore := graphrag.NewMemoryGraphStore()
	builder, err := graphrag.NewBuilder(extractor, components.Embedder, graphStore, builderCfg)
	if err != nil {
		return err
	}

	result, err := builder.Build(ctx, c.Graph, texts)
	if err != nil {
		return err
	}
	fmt.Printf("entities: %d, relationships: %d, communities: %d",
		result.Entities, result.Relationships, result.Communities)
	if result.FailedChunks > 0 {
		fmt.Printf(" (%d chunks failed extraction)", result.FailedChunks)
	}
	fmt.Println()

	if c.Summarize {
		summarizer, err := graphrag.NewSummarizer(components.LLM, components.Embedder, cfg.GraphRAG.Extractor)
		if err != nil {
			return err
		}
		total := 0
		for level := 0; level <= builderCfg.HierarchyLevels; level++ {
			n, err := summarizer.SummarizeAll(ctx, graphStore, c.Graph, level)
			if err != nil {
				return err
			}
			total += n
		}
		fmt.Printf("summarized: %d communities\n", total)
	}

	if c.Question == "" {
		return nil
	}

	searcher, err := graphrag.NewSearcher(graphStore, components.Embedder, cfg.GraphRAG.Searcher)
	if err != nil {
		return err
	}
	retriever, err := pipeline.NewGraphRetriever(searcher, c.Graph, graphrag.SearchMode(c.Mode))
	if err != nil {
		return err
	}
	results, err := retriever.Retrieve(ctx, c.Question, cfg.Query.TopK)
	if err != nil {
		return err
	}

	answerer, err := pipeline.NewAnswerer(components.LLM)
	if err != nil {
		return err
	}
	pc := pipeline.New(c.Question)
	pc.Results = results
	pc = pipeline.Run(ctx, pc, answerer.Stage(pipeline.AnswerOptions{}))
	if pc.Err != nil {
		return pc.Err
	}

	fmt.Printf("\n%s\n", pc.Answer)
	if len(pc.Results) > 0 {
		fmt.Println("\nGraph context:")
		printResults(pc.Results)
	}
	return nil
}

func (c *GraphCmd) chunkFiles(ctx context.Context, cfg *config.Config) ([]string, error) {
	files, err := ingest.Discover(c.Paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files match %v", c.Paths)
	}

	extractors := ingest.NewExtractorRegistry()
	split := chunker.New()

	var texts []string
	for _, file := range files {
		content, err := extractors.Extract(ctx, file.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file.Path, err)
		}
		chunks, err := split.Chunk(content, cfg.Ingestion.Chunker)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk %s: %w", file.Path, err)
		}
		for _, chunk := range chunks {
			texts = append(texts, chunk.Content)
		}
	}
	return texts, nil
}

// MaintainCmd groups repository maintenance operations.
type MaintainCmd struct {
	Reembed     ReembedCmd     `cmd:"" help:"Recompute chunk embeddings."`
	Verify      VerifyCmd      `cmd:"" help:"Check embedding dimension consistency."`
	RetryFailed RetryFailedCmd `cmd:"" name:"retry-failed" help:"Reset failed documents to pending."`
	Cleanup     CleanupCmd     `cmd:"" help:"Purge soft-deleted documents and their chunks."`
	Diagnostics DiagnosticsCmd `cmd:"" help:"Print repository health counts."`
}

func openMaintainer(ctx context.Context, cli *CLI) (*maintenance.Maintainer, *config.Components, error) {
	cfg, err := cli.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	components, err := config.Build(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	maintainer, err := maintenance.New(components.Repo, components.Embedder)
	if err != nil {
		components.Close()
		return nil, nil, err
	}
	return maintainer, components, nil
}

// ReembedCmd recomputes chunk embeddings.
type ReembedCmd struct {
	Collection string `help:"Restrict to one collection by name."`
	Missing    bool   `help:"Only chunks without an embedding."`
	BatchSize  int    `name:"batch-size" help:"Chunks per embedding call." default:"50"`
}

func (c *ReembedCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	maintainer, components, err := openMaintainer(ctx, cli)
	if err != nil {
		return err
	}
	defer components.Close()

	opts := maintenance.ReembedOptions{
		WithoutEmbedding: c.Missing,
		BatchSize:        c.BatchSize,
		Progress:         &maintenance.TextReporter{W: os.Stdout},
	}
	if c.Collection != "" {
		collection, err := components.Repo.GetCollection(ctx, c.Collection)
		if err != nil {
			return err
		}
		opts.Collection = collection.ID
	}

	result, err := maintainer.Reembed(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Printf("reembedded %d of %d chunks (%d failed)\n", result.Processed, result.Total, result.Failed)
	for _, chunkErr := range result.Errors {
		fmt.Printf("  %s: %s\n", chunkErr.ChunkID, chunkErr.Error)
	}
	return nil
}

// VerifyCmd checks embedding dimension consistency.
type VerifyCmd struct{}

func (c *VerifyCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	maintainer, components, err := openMaintainer(ctx, cli)
	if err != nil {
		return err
	}
	defer components.Close()

	result, err := maintainer.VerifyEmbeddings(ctx)
	if err != nil {
		return err
	}
	if result.Consistent {
		fmt.Printf("%d chunks, embeddings consistent\n", result.TotalChunks)
		return nil
	}
	fmt.Printf("%d chunks, inconsistent embedding widths:\n", result.TotalChunks)
	widths := make([]int, 0, len(result.Widths))
	for width := range result.Widths {
		widths = append(widths, width)
	}
	sort.Ints(widths)
	for _, width := range widths {
		fmt.Printf("  %d dimensions: %d chunks\n", width, result.Widths[width])
	}
	return nil
}

// RetryFailedCmd resets failed documents to pending.
type RetryFailedCmd struct{}

func (c *RetryFailedCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	maintainer, components, err := openMaintainer(ctx, cli)
	if err != nil {
		return err
	}
	defer components.Close()

	n, err := maintainer.RetryFailed(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("reset %d failed documents to pending\n", n)
	return nil
}

// CleanupCmd purges soft-deleted documents.
type CleanupCmd struct{}

func (c *CleanupCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	maintainer, components, err := openMaintainer(ctx, cli)
	if err != nil {
		return err
	}
	defer components.Close()

	n, err := maintainer.CleanupDeleted(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d deleted documents\n", n)
	return nil
}

// DiagnosticsCmd prints repository health counts.
type DiagnosticsCmd struct{}

func (c *DiagnosticsCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	maintainer, components, err := openMaintainer(ctx, cli)
	if err != nil {
		return err
	}
	defer components.Close()

	diag, err := maintainer.Diagnostics(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("collections: %d\n", diag.Collections)
	fmt.Printf("documents: %d (failed %d)\n", diag.Documents, diag.FailedDocuments)
	fmt.Printf("chunks: %d (without embedding %d)\n", diag.Chunks, diag.ChunksWithoutEmbedding)
	fmt.Printf("storage: %d bytes\n", diag.StorageBytes)
	return nil
}

// EvalCmd groups retrieval evaluation operations.
type EvalCmd struct {
	Run EvalRunCmd `cmd:"" help:"Run the collection's test cases and store the results."`
	Add EvalAddCmd `cmd:"" help:"Register a retrieval test case."`
}

// EvalRunCmd runs the collection's test cases.
type EvalRunCmd struct {
	Collection string `help:"Collection to evaluate." default:"default"`
	Mode       string `help:"Retrieval mode." enum:"vector,fulltext,hybrid" default:"vector"`
	K          int    `help:"Metric cutoff." default:"5"`
}

func (c *EvalRunCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	components, err := config.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()

	collection, err := components.Repo.GetCollection(ctx, c.Collection)
	if err != nil {
		return err
	}
	retriever, err := buildRetriever(components.Adapters(), cfg, c.Mode, c.Collection)
	if err != nil {
		return err
	}

	runner, err := evaluation.NewRunner(components.Repo, func(ctx context.Context, query string, k int) ([]string, error) {
		results, err := retriever.Retrieve(ctx, query, k)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(results))
		for i, result := range results {
			ids[i] = result.ID
		}
		return ids, nil
	})
	if err != nil {
		return err
	}

	run, err := runner.Run(ctx, collection.ID, evaluation.Options{K: c.K})
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %s (%d cases)\n", run.ID, run.Status, len(run.PerCaseResults))
	names := make([]string, 0, len(run.AggregateMetrics))
	for name := range run.AggregateMetrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.4f\n", name, run.AggregateMetrics[name])
	}
	return nil
}

// EvalAddCmd registers a retrieval test case.
type EvalAddCmd struct {
	Query      string   `arg:"" help:"The test query."`
	Expect     []string `help:"Expected result ids." required:""`
	Collection string   `help:"Collection the case belongs to." default:"default"`
}

func (c *EvalAddCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	components, err := config.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()

	collection, err := ensureCollection(ctx, components.Repo, c.Collection)
	if err != nil {
		return err
	}
	testCase := &store.TestCase{
		CollectionID: collection.ID,
		Query:        c.Query,
		ExpectedIDs:  c.Expect,
	}
	if err := components.Repo.CreateTestCase(ctx, testCase); err != nil {
		return err
	}
	fmt.Printf("created test case %s\n", testCase.ID)
	return nil
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("portfolio"),
		kong.Description("Index documents and answer questions over them with retrieval-augmented generation."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
