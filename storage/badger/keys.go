package badger

import "bytes"

// Key prefixes for different data types
const (
	documentPrefix    = "doc:"
	documentSetPrefix = "docset:"
	metadataPrefix    = "meta:"
	checkpointPrefix  = "checkpoint:"
)

const keySeparator = 0x00

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id string) []byte {
	return append([]byte(documentPrefix), id...)
}

// documentIDFromKey strips the record prefix from a document key.
func documentIDFromKey(key []byte) string {
	return string(bytes.TrimPrefix(key, []byte(documentPrefix)))
}

// makePartialDocumentSetKey generates the scan prefix for one document set.
// Format: prefix<set>\x00
func makePartialDocumentSetKey(set string) []byte {
	buf := make([]byte, 0, len(documentSetPrefix)+len(set)+1)
	buf = append(buf, documentSetPrefix...)
	buf = append(buf, set...)
	return append(buf, keySeparator)
}

// makeDocumentSetKey generates a composite key for the document set index.
// Format: prefix<set>\x00<id>
func makeDocumentSetKey(set, id string) []byte {
	return append(makePartialDocumentSetKey(set), id...)
}

// makePartialMetadataKey generates the scan prefix for one metadata pair.
// Format: prefix<key>\x00<value>\x00
func makePartialMetadataKey(key, value string) []byte {
	buf := make([]byte, 0, len(metadataPrefix)+len(key)+len(value)+2)
	buf = append(buf, metadataPrefix...)
	buf = append(buf, key...)
	buf = append(buf, keySeparator)
	buf = append(buf, value...)
	return append(buf, keySeparator)
}

// makeMetadataKey generates a composite key for the metadata index.
// Format: prefix<key>\x00<value>\x00<id>
func makeMetadataKey(key, value, id string) []byte {
	return append(makePartialMetadataKey(key, value), id...)
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return append([]byte(checkpointPrefix), processorType...)
}
