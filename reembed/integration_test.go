package reembed

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/poiesic/hybridrank/ai"
	"github.com/poiesic/hybridrank/ai/mock"
	"github.com/poiesic/hybridrank/ai/openai"
	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegration_ModelChange indexes documents with one vectorizer, records
// feedback, then reembeds everything with a vectorizer of another dimension.
func TestIntegration_ModelChange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	repo, checkpoints := setupTestDB(t)

	docs := make([]*core.Document, 0, 20)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		doc := testDocument(id)
		doc.Chunks = append(doc.Chunks, core.Chunk{Index: 1, Content: "second chunk of " + id})
		docs = append(docs, doc)
	}
	_, err := newTestPipeline(t, repo, mock.NewMockVectorizer()).IngestBatch(ctx, docs)
	require.NoError(t, err)

	_, err = repo.AdjustBoost(ctx, "c", 2)
	require.NoError(t, err)
	require.NoError(t, repo.SetHidden(ctx, "e", true))

	before, err := repo.GetDocument(ctx, "a")
	require.NoError(t, err)
	require.Len(t, before.TitleVector, mock.DefaultDimension)

	upgraded := &mock.MockVectorizer{Dim: 64}
	var buf bytes.Buffer
	r, err := NewReembedder(repo, newTestPipeline(t, repo, upgraded), testConfig(4), &buf, WithCheckpoints(checkpoints))
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	ids, err := repo.ListDocumentIDs(ctx)
	require.NoError(t, err)
	all, err := repo.GetDocuments(ctx, ids...)
	require.NoError(t, err)
	require.Len(t, all, 10)

	for _, doc := range all {
		assert.Len(t, doc.TitleVector, 64, "%s title", doc.ID)
		for _, chunk := range doc.Chunks {
			assert.Len(t, chunk.Embedding, 64, "%s chunk %d", doc.ID, chunk.Index)
		}
	}

	after, err := repo.GetDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, before.Fingerprint(), after.Fingerprint(), "source fields are unchanged")

	boosted, err := repo.GetDocument(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, boosted.BoostCount)

	hidden, err := repo.GetDocument(ctx, "e")
	require.NoError(t, err)
	assert.True(t, hidden.Hidden)

	// One title and two chunks per document.
	assert.Len(t, upgraded.Texts(), 30)

	output := buf.String()
	assert.Contains(t, output, "Starting reembedding of 10 documents")
	assert.Contains(t, output, "10/10")
	assert.Contains(t, output, "100.0%")
	assert.Contains(t, output, "Reembedding complete")
}

// TestIntegration_IdempotentReembedding runs the job twice with the same
// vectorizer; stored vectors must not drift.
func TestIntegration_IdempotentReembedding(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	repo, checkpoints := setupTestDB(t)
	seedDocuments(t, repo, 5)

	pipeline := newTestPipeline(t, repo, mock.NewMockVectorizer())
	r, err := NewReembedder(repo, pipeline, testConfig(2), nil, WithCheckpoints(checkpoints))
	require.NoError(t, err)

	require.NoError(t, r.Run(ctx))
	first, err := repo.GetDocument(ctx, "doc-03")
	require.NoError(t, err)

	require.NoError(t, r.Run(ctx))
	second, err := repo.GetDocument(ctx, "doc-03")
	require.NoError(t, err)

	assert.Equal(t, first.TitleVector, second.TitleVector)
	assert.Equal(t, first.Chunks, second.Chunks)
}

// TestIntegration_WithRealVectorizer requires a running OpenAI-compatible
// embedding service and is skipped by default.
func TestIntegration_WithRealVectorizer(t *testing.T) {
	t.Skip("Requires running embedding service - enable manually for testing")

	ctx := context.Background()
	repo, _ := setupTestDB(t)
	seedDocuments(t, repo, 3)

	provider, err := openai.NewProvider(ai.NewConfig(
		ai.WithEmbeddingHost("http://localhost:11434/v1"),
		ai.WithEmbeddingModel("embeddinggemma"),
		ai.WithDimension(768),
	))
	require.NoError(t, err)
	defer provider.Close()

	config := DefaultConfig()
	config.RetryDelay = 100 * time.Millisecond

	var buf bytes.Buffer
	pipeline, err := ingestion.NewPipeline(repo, provider)
	require.NoError(t, err)
	defer pipeline.Release()

	r, err := NewReembedder(repo, pipeline, config, &buf)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	doc, err := repo.GetDocument(ctx, "doc-00")
	require.NoError(t, err)
	assert.Len(t, doc.TitleVector, 768)
}
