package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/hybridrank/config"
	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/ingestion"
	"github.com/poiesic/hybridrank/query"
	"github.com/poiesic/hybridrank/reembed"
	"github.com/poiesic/hybridrank/search"
)

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one document file is required")
	}

	var docs []*core.Document
	for _, path := range c.Args().Slice() {
		fileDocs, err := readDocumentFile(path)
		if err != nil {
			return fmt.Errorf("failed to read documents: %w", err)
		}
		docs = append(docs, fileDocs...)
	}

	cfg := appConfig(c)
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	var opts []ingestion.Option
	poolSize := cfg.Ingest.PoolSize
	if c.IsSet("pool-size") {
		poolSize = c.Int("pool-size")
	}
	if poolSize > 0 {
		opts = append(opts, ingestion.WithPoolSize(poolSize))
	}
	if cfg.Ingest.EmbedBatchSize > 0 {
		opts = append(opts, ingestion.WithEmbedBatchSize(cfg.Ingest.EmbedBatchSize))
	}

	pipeline, err := idx.NewIngestionPipeline(opts...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	results, err := pipeline.IngestBatch(c.Context, docs)
	out := c.App.Writer
	indexed := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		indexed++
		action := "added"
		if r.Replaced {
			action = "replaced"
		}
		fmt.Fprintf(out, "%s\t%s\t%d chunks\n", r.DocumentID, action, r.ChunkCount)
	}
	fmt.Fprintf(out, "Indexed %d of %d documents\n", indexed, len(docs))
	if err != nil {
		return fmt.Errorf("some documents failed: %w", err)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("a query is required")
	}

	filters, err := searchFilters(c)
	if err != nil {
		return err
	}

	cfg := appConfig(c)
	topK := cfg.Search.TopK
	if c.IsSet("top-k") {
		topK = c.Int("top-k")
	}

	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	searcher, err := idx.NewSearcher(
		search.WithQueryTimeout(cfg.QueryTimeout()),
		search.WithTitleBoost(cfg.Search.TitleBoost),
		search.WithCandidateMultiplier(cfg.Search.CandidateMultiplier),
		search.WithMinCandidates(cfg.Search.MinCandidates),
	)
	if err != nil {
		return err
	}

	req := search.Request{Text: text, Filters: filters, TopK: topK}
	out := c.App.Writer

	var resp *search.Response
	if c.Bool("explain") {
		resp, err = searcher.SearchWithMonitor(c.Context, req, newExplainMonitor(out))
	} else {
		resp, err = searcher.Search(c.Context, req)
	}
	if err != nil {
		return err
	}

	printResults(out, resp)
	return nil
}

func searchFilters(c *cli.Context) (query.FilterSet, error) {
	filters := query.FilterSet{
		IncludeHidden: c.Bool("include-hidden"),
		DocumentSets:  c.StringSlice("document-set"),
		SourceTypes:   c.StringSlice("source-type"),
	}
	for _, kv := range c.StringSlice("meta") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return filters, fmt.Errorf("invalid --meta %q: expected KEY=VALUE", kv)
		}
		filters.Metadata = append(filters.Metadata, core.MetadataPair{Key: key, Value: value})
	}

	since, until := c.Timestamp("since"), c.Timestamp("until")
	if since != nil || until != nil {
		filters.TimeRange = &query.TimeRange{Start: since, End: until}
	}
	return filters, filters.Validate()
}

func printResults(out io.Writer, resp *search.Response) {
	fmt.Fprintf(out, "Found %d results (%d candidates) in %v\n",
		len(resp.Results.Results), resp.Candidates, resp.Duration.Round(time.Microsecond))
	for _, r := range resp.Results.Results {
		fmt.Fprintf(out, "%d: %s '%s' [%0.4f]\n", r.Rank, r.Document.ID, r.Document.Title, r.Score)
		if best := r.Best(core.SignalChunkVector); best != nil {
			fmt.Fprintf(out, "   chunk %d: %s\n", best.Index, best.Content)
		}
	}
}

func feedbackCommand(c *cli.Context) error {
	id, err := documentID(c)
	if err != nil {
		return err
	}

	idx, err := openIndex(appConfig(c))
	if err != nil {
		return err
	}
	defer idx.Close()

	count, err := idx.RecordFeedback(c.Context, id, c.Int("delta"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s boost is now %d\n", id, count)
	return nil
}

func hiddenCommand(hidden bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		id, err := documentID(c)
		if err != nil {
			return err
		}

		idx, err := openIndex(appConfig(c))
		if err != nil {
			return err
		}
		defer idx.Close()

		if err := idx.SetHidden(c.Context, id, hidden); err != nil {
			return err
		}
		state := "visible"
		if hidden {
			state = "hidden"
		}
		fmt.Fprintf(c.App.Writer, "%s is now %s\n", id, state)
		return nil
	}
}

func deleteCommand(c *cli.Context) error {
	id, err := documentID(c)
	if err != nil {
		return err
	}

	idx, err := openIndex(appConfig(c))
	if err != nil {
		return err
	}
	defer idx.Close()

	if err := idx.DeleteDocument(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s deleted\n", id)
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg := appConfig(c)
	if c.IsSet("embedding-host") {
		cfg.Embedding.Host = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.Embedding.Model = c.String("embedding-model")
	}
	if c.IsSet("dimension") {
		cfg.Embedding.Dimension = c.Int("dimension")
	}

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Resume:         !c.Bool("restart"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	pipeline, err := idx.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	progress := c.App.ErrWriter
	reembedder, err := idx.NewReembedder(pipeline, reembedConfig, progress)
	if err != nil {
		return err
	}

	fmt.Fprintf(progress, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintf(progress, "Embedding host: %s\n", cfg.Embedding.Host)
	fmt.Fprintf(progress, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(progress)

	if err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func configInitCommand(c *cli.Context) error {
	path := c.String("path")
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

func documentID(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("exactly one document ID is required")
	}
	return c.Args().First(), nil
}
