package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/hybridrank/core"
)

func TestReadDocuments(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		docs, err := readDocuments(strings.NewReader(corpusYAML))
		require.NoError(t, err)
		require.Len(t, docs, 3)

		doc := docs[1]
		assert.Equal(t, "test2", doc.ID)
		assert.Equal(t, "My favorite animal", doc.Title)
		assert.Equal(t, "web", doc.SourceType)
		assert.Equal(t, []string{"test_set"}, doc.DocumentSets)
		assert.True(t, doc.Metadata.Has("space", "HR"))
		assert.True(t, doc.Metadata.Has("space", "IT"))
		require.Len(t, doc.Chunks, 3)
		for i, c := range doc.Chunks {
			assert.Equal(t, i, c.Index, "chunk indices follow file order")
		}
		assert.NoError(t, core.ValidateDocument(doc))
	})

	t.Run("multi-document stream", func(t *testing.T) {
		input := `
id: a
title: First
boost: 3
hidden: true
last_updated: 2023-09-10T00:00:00Z
chunks:
  - content: one
    link: https://example.com/a#1
    max_tokens: 512
---
id: b
title: Second
chunks:
  - content: two
`
		docs, err := readDocuments(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, docs, 2)

		a := docs[0]
		assert.Equal(t, 3, a.BoostCount)
		assert.True(t, a.Hidden)
		require.NotNil(t, a.LastUpdated)
		assert.True(t, a.LastUpdated.Equal(time.Date(2023, 9, 10, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, "https://example.com/a#1", a.Chunks[0].Link)
		assert.Equal(t, 512, a.Chunks[0].MaxTokens)

		assert.Equal(t, "b", docs[1].ID)
		assert.Nil(t, docs[1].LastUpdated)
	})

	t.Run("json", func(t *testing.T) {
		input := `{"id": "j", "title": "From JSON", "last_updated": "2024-01-02T03:04:05Z",
			"metadata": {"team": ["search"]}, "chunks": [{"content": "body"}]}`
		docs, err := readDocuments(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "From JSON", docs[0].Title)
		assert.True(t, docs[0].Metadata.Has("team", "search"))
		require.NotNil(t, docs[0].LastUpdated)
		assert.Equal(t, 2024, docs[0].LastUpdated.Year())
	})

	t.Run("empty", func(t *testing.T) {
		docs, err := readDocuments(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := readDocuments(strings.NewReader("id: [unclosed"))
		assert.Error(t, err)

		_, err = readDocuments(strings.NewReader("chunks: notalist"))
		assert.Error(t, err)
	})
}

func TestReadDocumentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(corpusYAML), 0o644))

	docs, err := readDocumentFile(path)
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	_, err = readDocumentFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
