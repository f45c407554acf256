package core

import (
	"errors"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

var (
	// ErrNegativeLength is returned when a decoded length prefix is negative.
	ErrNegativeLength = errors.New("mus: negative length")

	// ErrLengthOverflow is returned when a decoded length prefix claims more
	// elements than the remaining bytes could hold.
	ErrLengthOverflow = errors.New("mus: length exceeds remaining bytes")
)

// DocumentMUS serializes Document values in MUS format.
var DocumentMUS = documentMUS{}

// CheckpointMUS serializes Checkpoint values in MUS format.
var CheckpointMUS = checkpointMUS{}

type documentMUS struct{}

func (s documentMUS) Marshal(v Document, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += marshalVector(v.TitleVector, bs[n:])
	n += varint.Int.Marshal(len(v.Chunks), bs[n:])
	for i := range v.Chunks {
		n += chunkMUS{}.Marshal(v.Chunks[i], bs[n:])
	}
	n += ord.String.Marshal(v.SourceType, bs[n:])
	n += marshalStrings(v.DocumentSets, bs[n:])
	n += varint.Int.Marshal(len(v.Metadata), bs[n:])
	for _, p := range v.Metadata {
		n += ord.String.Marshal(p.Key, bs[n:])
		n += ord.String.Marshal(p.Value, bs[n:])
	}
	n += varint.Int.Marshal(v.BoostCount, bs[n:])
	n += marshalTimePtr(v.LastUpdated, bs[n:])
	n += ord.Bool.Marshal(v.Hidden, bs[n:])
	return
}

func (s documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	var n1 int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	v.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.TitleVector, n1, err = unmarshalVector(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var count int
	count, n1, err = unmarshalLength(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if count > 0 {
		v.Chunks = make([]Chunk, count)
		for i := range v.Chunks {
			v.Chunks[i], n1, err = (chunkMUS{}).Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
		}
	}
	v.SourceType, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.DocumentSets, n1, err = unmarshalStrings(bs[n:])
	n += n1
	if err != nil {
		return
	}
	count, n1, err = unmarshalLength(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if count > 0 {
		v.Metadata = make(Metadata, count)
		for i := range v.Metadata {
			v.Metadata[i].Key, n1, err = ord.String.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
			v.Metadata[i].Value, n1, err = ord.String.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
		}
	}
	v.BoostCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastUpdated, n1, err = unmarshalTimePtr(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Hidden, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	return
}

func (s documentMUS) Size(v Document) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.Title)
	size += sizeVector(v.TitleVector)
	size += varint.Int.Size(len(v.Chunks))
	for i := range v.Chunks {
		size += chunkMUS{}.Size(v.Chunks[i])
	}
	size += ord.String.Size(v.SourceType)
	size += sizeStrings(v.DocumentSets)
	size += varint.Int.Size(len(v.Metadata))
	for _, p := range v.Metadata {
		size += ord.String.Size(p.Key)
		size += ord.String.Size(p.Value)
	}
	size += varint.Int.Size(v.BoostCount)
	size += sizeTimePtr(v.LastUpdated)
	size += ord.Bool.Size(v.Hidden)
	return
}

type chunkMUS struct{}

func (s chunkMUS) Marshal(v Chunk, bs []byte) (n int) {
	n = varint.Int.Marshal(v.Index, bs)
	n += ord.String.Marshal(v.Content, bs[n:])
	n += marshalVector(v.Embedding, bs[n:])
	n += varint.Int.Marshal(v.TokenCount, bs[n:])
	n += varint.Int.Marshal(v.MaxTokens, bs[n:])
	n += ord.String.Marshal(v.Link, bs[n:])
	return
}

func (s chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	var n1 int
	if v.Index, n, err = varint.Int.Unmarshal(bs); err != nil {
		return
	}
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Embedding, n1, err = unmarshalVector(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.TokenCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.MaxTokens, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Link, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s chunkMUS) Size(v Chunk) (size int) {
	size = varint.Int.Size(v.Index)
	size += ord.String.Size(v.Content)
	size += sizeVector(v.Embedding)
	size += varint.Int.Size(v.TokenCount)
	size += varint.Int.Size(v.MaxTokens)
	size += ord.String.Size(v.Link)
	return
}

type checkpointMUS struct{}

func (s checkpointMUS) Marshal(v Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(v.ProcessorType, bs)
	n += ord.String.Marshal(v.LastDocumentID, bs[n:])
	n += varint.Int.Marshal(v.Processed, bs[n:])
	n += varint.Int64.Marshal(v.UpdatedAt.UnixMicro(), bs[n:])
	return
}

func (s checkpointMUS) Unmarshal(bs []byte) (v Checkpoint, n int, err error) {
	var n1 int
	if v.ProcessorType, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	v.LastDocumentID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Processed, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (s checkpointMUS) Size(v Checkpoint) (size int) {
	size = ord.String.Size(v.ProcessorType)
	size += ord.String.Size(v.LastDocumentID)
	size += varint.Int.Size(v.Processed)
	size += varint.Int64.Size(v.UpdatedAt.UnixMicro())
	return
}

// unmarshalLength decodes a collection length. Every encoded element takes
// at least one byte, so a length beyond the remaining input is corrupt.
func unmarshalLength(bs []byte) (length, n int, err error) {
	length, n, err = varint.Int.Unmarshal(bs)
	switch {
	case err != nil:
	case length < 0:
		err = ErrNegativeLength
	case length > len(bs)-n:
		err = ErrLengthOverflow
	}
	return
}

func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	var length, n1 int
	if length, n, err = unmarshalLength(bs); err != nil || length == 0 {
		return
	}
	v = make([]float32, length)
	for i := range v {
		v[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func sizeVector(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return
}

func marshalStrings(v []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return
}

func unmarshalStrings(bs []byte) (v []string, n int, err error) {
	var length, n1 int
	if length, n, err = unmarshalLength(bs); err != nil || length == 0 {
		return
	}
	v = make([]string, length)
	for i := range v {
		v[i], n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func sizeStrings(v []string) (size int) {
	size = varint.Int.Size(len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return
}

func marshalTimePtr(t *time.Time, bs []byte) (n int) {
	if t == nil {
		return ord.Bool.Marshal(false, bs)
	}
	n = ord.Bool.Marshal(true, bs)
	n += varint.Int64.Marshal(t.UnixMicro(), bs[n:])
	return
}

func unmarshalTimePtr(bs []byte) (t *time.Time, n int, err error) {
	var present bool
	if present, n, err = ord.Bool.Unmarshal(bs); err != nil || !present {
		return
	}
	var (
		m  int64
		n1 int
	)
	m, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	ts := time.UnixMicro(m).UTC()
	t = &ts
	return
}

func sizeTimePtr(t *time.Time) int {
	if t == nil {
		return ord.Bool.Size(false)
	}
	return ord.Bool.Size(true) + varint.Int64.Size(t.UnixMicro())
}
