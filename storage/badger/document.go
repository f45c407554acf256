package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/query"
	"github.com/poiesic/hybridrank/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *DocumentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// UpsertDocument writes the document and its index entries, first removing
// every index entry of the version it replaces. Both happen in one
// transaction so readers never observe a half-replaced document.
func (r *DocumentRepository) UpsertDocument(ctx context.Context, doc *core.Document) (bool, error) {
	if doc == nil || doc.ID == "" {
		return false, core.ErrEmptyDocumentID
	}

	var replaced bool
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.ID)
		old, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		replaced = old != nil
		if old != nil {
			if err := deleteIndexes(tx, old); err != nil {
				return err
			}
		}

		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return writeIndexes(tx, doc)
	})
	return replaced, err
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var result *core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// GetDocuments retrieves multiple documents by their IDs.
func (r *DocumentRepository) GetDocuments(ctx context.Context, ids ...string) ([]*core.Document, error) {
	var result []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc != nil {
				result = append(result, doc)
			}
		}
		return nil
	})
	return result, err
}

// DeleteDocument removes a document and its index entries.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		doc, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		if err := deleteIndexes(tx, doc); err != nil {
			return err
		}
		return tx.Delete(key)
	})
}

// AdjustBoost adds delta to the document's boost count.
func (r *DocumentRepository) AdjustBoost(ctx context.Context, id string, delta int) (int, error) {
	var boost int
	err := r.modify(ctx, id, func(doc *core.Document) {
		doc.BoostCount += delta
		boost = doc.BoostCount
	})
	return boost, err
}

// SetBoost overwrites the document's boost count.
func (r *DocumentRepository) SetBoost(ctx context.Context, id string, value int) error {
	return r.modify(ctx, id, func(doc *core.Document) {
		doc.BoostCount = value
	})
}

// SetHidden toggles the document's hidden flag.
func (r *DocumentRepository) SetHidden(ctx context.Context, id string, hidden bool) error {
	return r.modify(ctx, id, func(doc *core.Document) {
		doc.Hidden = hidden
	})
}

// ListDocumentIDs returns every stored document ID in ascending order.
func (r *DocumentRepository) ListDocumentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids = append(ids, documentIDFromKey(iter.Item().Key()))
		}
		return nil
	})
	return ids, err
}

// Search scores the documents passing the query's filters.
func (r *DocumentRepository) Search(ctx context.Context, q *query.CompositeQuery) ([]*core.Candidate, error) {
	if q == nil {
		return nil, storage.ErrInvalidQuery
	}

	var docs []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		docs, err = r.filteredDocuments(ctx, tx, &q.Filters)
		return err
	})
	if err != nil {
		return nil, err
	}

	return scoreDocuments(ctx, docs, q)
}

// modify applies a read-modify-write to one stored document. Indexed
// fields are never touched, so index entries stay valid.
func (r *DocumentRepository) modify(ctx context.Context, id string, fn func(doc *core.Document)) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		doc, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		fn(doc)
		return tx.Set(key, storage.MarshalDocument(doc))
	})
}

// filteredDocuments narrows the candidate set with the secondary indexes
// and then applies the full filter set to every remaining document.
func (r *DocumentRepository) filteredDocuments(ctx context.Context, tx *badger.Txn, filters *query.FilterSet) ([]*core.Document, error) {
	ids, narrowed, err := indexedIDs(ctx, tx, filters)
	if err != nil {
		return nil, err
	}

	var docs []*core.Document
	keep := func(doc *core.Document) {
		if doc != nil && filters.Matches(doc) {
			docs = append(docs, doc)
		}
	}

	if narrowed {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			doc, err := readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return nil, err
			}
			keep(doc)
		}
		return docs, nil
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(documentPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var doc *core.Document
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			doc, err = storage.UnmarshalDocument(val)
			return err
		}); err != nil {
			return nil, err
		}
		keep(doc)
	}
	return docs, nil
}

// indexedIDs resolves the metadata and document set clauses against the
// secondary indexes. Metadata pairs intersect; document sets union. The
// second return value is false when no indexed clause is present.
func indexedIDs(ctx context.Context, tx *badger.Txn, filters *query.FilterSet) ([]string, bool, error) {
	var current map[string]struct{}
	narrowed := false

	intersect := func(next map[string]struct{}) {
		if !narrowed {
			current = next
			narrowed = true
			return
		}
		for id := range current {
			if _, ok := next[id]; !ok {
				delete(current, id)
			}
		}
	}

	for _, pair := range filters.Metadata {
		ids, err := scanIDs(ctx, tx, makePartialMetadataKey(pair.Key, pair.Value))
		if err != nil {
			return nil, false, err
		}
		intersect(ids)
	}

	if len(filters.DocumentSets) > 0 {
		union := make(map[string]struct{})
		for _, set := range filters.DocumentSets {
			ids, err := scanIDs(ctx, tx, makePartialDocumentSetKey(set))
			if err != nil {
				return nil, false, err
			}
			for id := range ids {
				union[id] = struct{}{}
			}
		}
		intersect(union)
	}

	if !narrowed {
		return nil, false, nil
	}
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	return ids, true, nil
}

// scanIDs collects the document IDs stored under an index prefix.
func scanIDs(ctx context.Context, tx *badger.Txn, prefix []byte) (map[string]struct{}, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	ids := make(map[string]struct{})
	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids[string(iter.Item().Key()[len(prefix):])] = struct{}{}
	}
	return ids, nil
}

// Helper methods

// readDocument reads a document from the transaction.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}

// writeIndexes adds document set and metadata index entries for a document.
func writeIndexes(tx *badger.Txn, doc *core.Document) error {
	for _, set := range doc.DocumentSets {
		if err := tx.Set(makeDocumentSetKey(set, doc.ID), nil); err != nil {
			return err
		}
	}
	for _, pair := range doc.Metadata {
		if err := tx.Set(makeMetadataKey(pair.Key, pair.Value, doc.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

// deleteIndexes removes document set and metadata index entries for a document.
func deleteIndexes(tx *badger.Txn, doc *core.Document) error {
	for _, set := range doc.DocumentSets {
		if err := tx.Delete(makeDocumentSetKey(set, doc.ID)); err != nil {
			return err
		}
	}
	for _, pair := range doc.Metadata {
		if err := tx.Delete(makeMetadataKey(pair.Key, pair.Value, doc.ID)); err != nil {
			return err
		}
	}
	return nil
}
