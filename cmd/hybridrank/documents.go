package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/hybridrank/core"
)

// chunkFile is one chunk as written in a document file.
type chunkFile struct {
	Content    string `yaml:"content"`
	Link       string `yaml:"link,omitempty"`
	TokenCount int    `yaml:"token_count,omitempty"`
	MaxTokens  int    `yaml:"max_tokens,omitempty"`
}

// documentFile is the on-disk form of a document. YAML and JSON files are
// both accepted since JSON parses as YAML.
type documentFile struct {
	ID           string              `yaml:"id"`
	Title        string              `yaml:"title"`
	SourceType   string              `yaml:"source_type,omitempty"`
	DocumentSets []string            `yaml:"document_sets,omitempty"`
	Metadata     map[string][]string `yaml:"metadata,omitempty"`
	Boost        int                 `yaml:"boost,omitempty"`
	Hidden       bool                `yaml:"hidden,omitempty"`
	LastUpdated  *time.Time          `yaml:"last_updated,omitempty"`
	Chunks       []chunkFile         `yaml:"chunks"`
}

func (f *documentFile) toDocument() *core.Document {
	doc := &core.Document{
		ID:           f.ID,
		Title:        f.Title,
		SourceType:   f.SourceType,
		DocumentSets: f.DocumentSets,
		Metadata:     core.MetadataFromMap(f.Metadata),
		BoostCount:   f.Boost,
		Hidden:       f.Hidden,
		LastUpdated:  f.LastUpdated,
	}
	for i, c := range f.Chunks {
		doc.Chunks = append(doc.Chunks, core.Chunk{
			Index:      i,
			Content:    c.Content,
			Link:       c.Link,
			TokenCount: c.TokenCount,
			MaxTokens:  c.MaxTokens,
		})
	}
	return doc
}

// readDocuments decodes every document in r. A stream may hold a single
// document, a list of documents, or several YAML documents separated by ---.
func readDocuments(r io.Reader) ([]*core.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var docs []*core.Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if len(node.Content) == 0 {
			continue
		}

		var files []documentFile
		if node.Content[0].Kind == yaml.SequenceNode {
			if err := node.Decode(&files); err != nil {
				return nil, err
			}
		} else {
			var f documentFile
			if err := node.Decode(&f); err != nil {
				return nil, err
			}
			files = append(files, f)
		}
		for i := range files {
			docs = append(docs, files[i].toDocument())
		}
	}
	return docs, nil
}

// readDocumentFile reads documents from path; "-" reads standard input.
func readDocumentFile(path string) ([]*core.Document, error) {
	if path == "-" {
		return readDocuments(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := readDocuments(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}
