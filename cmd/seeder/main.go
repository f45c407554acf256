package main

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/hybridrank"
	"github.com/poiesic/hybridrank/config"
	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/ingestion"
)

var sampleUpdated = time.Date(2023, 9, 10, 0, 0, 0, 0, time.UTC)

// sampleDocument builds one document of the weather/animal/food corpus.
func sampleDocument(id, title string, contents ...string) *core.Document {
	updated := sampleUpdated
	doc := &core.Document{
		ID:           id,
		Title:        title,
		SourceType:   "web",
		DocumentSets: []string{"test_set"},
		Metadata:     core.Metadata{{Key: "space", Value: "HR"}},
		LastUpdated:  &updated,
	}
	for i, c := range contents {
		doc.Chunks = append(doc.Chunks, core.Chunk{
			Index:      i,
			Content:    c,
			TokenCount: len(strings.Fields(c)),
			MaxTokens:  4096,
		})
	}
	return doc
}

func sampleCorpus() []*core.Document {
	return []*core.Document{
		sampleDocument("test1", "The weather in Florida",
			"The weather in Florida is hot and humid",
			"The weather in Alaska is frigid",
			"The weather in the Saharah is dry"),
		sampleDocument("test2", "My favorite animal",
			"My favorite animal in the world is the dog",
			"My favorite animal in the world is the cat",
			"My favorite animal in Florida is the aligator"),
		sampleDocument("test3", "The best food",
			"The best food is French fries",
			"The best food is pizza",
			"The best food is sushi"),
	}
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// documentsFromLines turns each non-blank line into a single-chunk document
// titled by its first few words.
func documentsFromLines(lines iter.Seq[string], source string) iter.Seq[*core.Document] {
	return func(yield func(*core.Document) bool) {
		n := 0
		for line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			words := strings.Fields(line)
			doc := &core.Document{
				ID:         fmt.Sprintf("%s-%05d", source, n),
				Title:      strings.Join(words[:min(5, len(words))], " "),
				SourceType: "file",
				Chunks:     []core.Chunk{{Index: 0, Content: line, TokenCount: len(words)}},
			}
			n++
			if !yield(doc) {
				return
			}
		}
	}
}

// ingestBatched ingests documents from source in batches.
func ingestBatched(ctx context.Context, pipeline *ingestion.Pipeline, source iter.Seq[*core.Document], batchSize int) (int, error) {
	batch := make([]*core.Document, 0, batchSize)
	total := 0

	flush := func() error {
		if _, err := pipeline.IngestBatch(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for doc := range source {
		batch = append(batch, doc)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	// Process any remaining documents
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return total, err
		}
	}
	return total, nil
}

func seed(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	idx, err := hybridrank.NewIndex(c.String("db"), hybridrank.WithAIConfig(cfg.AIConfig()))
	if err != nil {
		return err
	}
	defer idx.Close()

	pipeline, err := idx.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	var source iter.Seq[*core.Document]
	if src := c.String("src"); src != "" {
		lines, err := linesFromFile(src)
		if err != nil {
			return err
		}
		source = documentsFromLines(lines, c.String("prefix"))
	} else {
		source = func(yield func(*core.Document) bool) {
			for _, doc := range sampleCorpus() {
				if !yield(doc) {
					return
				}
			}
		}
	}

	total, err := ingestBatched(c.Context, pipeline, source, c.Int("batch-size"))
	slog.Info("seeding finished", "documents", total, "db", c.String("db"))
	return err
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	app := &cli.App{
		Name:  "seeder",
		Usage: "Load sample documents into an index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path to BadgerDB database directory",
				Value: "./hybridrank.db",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to YAML config file",
				Value: config.FileName,
			},
			&cli.StringFlag{
				Name:  "src",
				Usage: "File of seed data, one document per line (default: built-in sample corpus)",
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Document ID prefix for --src lines",
				Value: "line",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Documents per ingest batch",
				Value: 5,
			},
		},
		Action: seed,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
