package core

import (
	"encoding/binary"
	"slices"
	"strings"
	"time"

	"github.com/minio/highwayhash"
)

// DefaultMaxTokens is the token budget assumed for a chunk that does not
// declare one.
const DefaultMaxTokens = 512

// NoChunk marks a SubQueryScore that is scoped to the whole document.
const NoChunk = -1

// fingerprintKey keys the highwayhash used for document fingerprints.
// Changing it invalidates every stored fingerprint.
var fingerprintKey = []byte("hybridrank-document-fingerprint!")

// MetadataPair is a single (key, value) tag attached to a document.
type MetadataPair struct {
	Key   string
	Value string
}

// Metadata is a set of (key, value) pairs. A key may appear with several values.
type Metadata []MetadataPair

// MetadataFromMap expands a mapping of keys to one or many values into
// sorted, de-duplicated pairs.
func MetadataFromMap(m map[string][]string) Metadata {
	pairs := make(Metadata, 0, len(m))
	for k, values := range m {
		for _, v := range values {
			pairs = append(pairs, MetadataPair{Key: k, Value: v})
		}
	}
	slices.SortFunc(pairs, compareMetadataPair)
	return slices.Compact(pairs)
}

// Has reports whether the exact (key, value) pair is present.
func (m Metadata) Has(key, value string) bool {
	for _, p := range m {
		if p.Key == key && p.Value == value {
			return true
		}
	}
	return false
}

// Values returns every value recorded under key, in stored order.
func (m Metadata) Values(key string) []string {
	var values []string
	for _, p := range m {
		if p.Key == key {
			values = append(values, p.Value)
		}
	}
	return values
}

func compareMetadataPair(a, b MetadataPair) int {
	if c := strings.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return strings.Compare(a.Value, b.Value)
}

// Chunk is an ordered slice of a document's content with its own embedding.
// A chunk has no identity outside its parent document.
type Chunk struct {
	Index      int
	Content    string
	Embedding  []float32
	TokenCount int
	MaxTokens  int    // DefaultMaxTokens when zero
	Link       string // Optional deep link to the chunk's location
}

// EffectiveMaxTokens returns MaxTokens, or DefaultMaxTokens when unset.
func (c *Chunk) EffectiveMaxTokens() int {
	if c.MaxTokens == 0 {
		return DefaultMaxTokens
	}
	return c.MaxTokens
}

// Document is the unit of retrieval.
type Document struct {
	ID           string
	Title        string
	TitleVector  []float32 // Derived from Title at ingestion
	Chunks       []Chunk   // Ordered by chunk index
	SourceType   string
	DocumentSets []string
	Metadata     Metadata
	BoostCount   int        // Signed feedback count; 0 is neutral
	LastUpdated  *time.Time // nil when the source never reported a date
	Hidden       bool
}

// HasLastUpdated reports whether the document carries a last-updated date.
func (d *Document) HasLastUpdated() bool {
	return d.LastUpdated != nil
}

// InDocumentSet reports whether the document belongs to the named set.
func (d *Document) InDocumentSet(set string) bool {
	return slices.Contains(d.DocumentSets, set)
}

// Content concatenates every chunk's content in chunk order.
func (d *Document) Content() string {
	var sb strings.Builder
	for i, c := range d.Chunks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(c.Content)
	}
	return sb.String()
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.TitleVector = slices.Clone(d.TitleVector)
	out.DocumentSets = slices.Clone(d.DocumentSets)
	out.Metadata = slices.Clone(d.Metadata)
	if d.LastUpdated != nil {
		ts := *d.LastUpdated
		out.LastUpdated = &ts
	}
	if d.Chunks != nil {
		out.Chunks = make([]Chunk, len(d.Chunks))
		for i, c := range d.Chunks {
			c.Embedding = slices.Clone(c.Embedding)
			out.Chunks[i] = c
		}
	}
	return &out
}

// Fingerprint hashes the document's source fields. Derived fields
// (vectors, boost, hidden) are excluded so re-ingesting the same content
// yields the same fingerprint.
func (d *Document) Fingerprint() uint64 {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		// The key is a fixed 32 bytes.
		panic(err)
	}
	write := func(s string) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	write(d.ID)
	write(d.Title)
	write(d.SourceType)
	for _, c := range d.Chunks {
		write(c.Content)
		write(c.Link)
	}
	sets := slices.Clone(d.DocumentSets)
	slices.Sort(sets)
	for _, s := range sets {
		write(s)
	}
	meta := slices.Clone(d.Metadata)
	slices.SortFunc(meta, compareMetadataPair)
	for _, p := range meta {
		write(p.Key)
		write(p.Value)
	}
	if d.LastUpdated != nil {
		write(d.LastUpdated.UTC().Format(time.RFC3339Nano))
	}
	return h.Sum64()
}

// SignalName tags a retrieval signal.
type SignalName string

const (
	// SignalLexical is BM25 over the title and the concatenated chunk content.
	SignalLexical SignalName = "lexical"
	// SignalTitleVector is cosine similarity between the query and the title vector.
	SignalTitleVector SignalName = "titleVector"
	// SignalChunkVector is cosine similarity between the query and a chunk embedding.
	SignalChunkVector SignalName = "chunkVector"
	// SignalChunkLexical is BM25 over a single chunk's content.
	SignalChunkLexical SignalName = "chunkLexical"
)

// Signals lists every known signal in a stable order.
var Signals = []SignalName{SignalLexical, SignalTitleVector, SignalChunkVector, SignalChunkLexical}

// ChunkScoped reports whether the signal is scored per chunk.
func (s SignalName) ChunkScoped() bool {
	return s == SignalChunkVector || s == SignalChunkLexical
}

// Valid reports whether s is a known signal.
func (s SignalName) Valid() bool {
	return slices.Contains(Signals, s)
}

// SubQueryScore is one raw score produced by a named sub-query.
type SubQueryScore struct {
	Signal     SignalName
	DocumentID string
	ChunkIndex int // NoChunk for document-scoped signals
	RawScore   float64
}

// Candidate is everything the storage engine knows about a matching
// document that fusion needs.
type Candidate struct {
	DocumentID  string
	BoostCount  int
	LastUpdated *time.Time
	Scores      []SubQueryScore
}

// ChunkMatch records the raw per-signal scores of one chunk.
type ChunkMatch struct {
	ChunkIndex int
	Scores     map[SignalName]float64

	// Contributing lists the signals whose document score this chunk set,
	// in Signals order.
	Contributing []SignalName
}

// Contributes reports whether the chunk supplied the document's score for signal.
func (m ChunkMatch) Contributes(signal SignalName) bool {
	return slices.Contains(m.Contributing, signal)
}

// FusedResult is a document's position in the final ranking together with
// the intermediate values that produced it.
type FusedResult struct {
	DocumentID    string
	FinalScore    float64
	FusedScore    float64
	DecayModifier float64
	BoostModifier float64
	Signals       map[SignalName]float64 // Normalized, after Stage 2
	MatchedChunks []ChunkMatch           // Ordered by chunk index
}

// Checkpoint tracks the progress of a resumable background job.
type Checkpoint struct {
	ProcessorType  string
	LastDocumentID string
	Processed      int
	UpdatedAt      time.Time
}
