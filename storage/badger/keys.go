package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/solenne/docent/core"
)

// Key prefixes for different data types
const (
	chunkRecordPrefix    = "chkrec"
	termPostingPrefix    = "trmpst"
	documentRecordPrefix = "docrec"
	lexiconStatsName     = "lexsta"
)

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", chunkRecordPrefix, id))
}

// makeTermPostingKey generates a composite key for a term posting.
// Format: prefix:term\x00chunkID
// The NUL separator keeps a term from prefix-matching postings of terms it
// is a prefix of (tokenized terms never contain NUL). The chunk ID is
// written in BigEndian order so per-term postings iterate in ID order.
func makeTermPostingKey(term string, id core.ID) []byte {
	prefix := makePartialTermPostingKey(term)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialTermPostingKey generates the scan prefix for a term's postings.
// Format: prefix:term\x00
func makePartialTermPostingKey(term string) []byte {
	prefix := termPostingPrefix + ":"
	buf := make([]byte, len(prefix)+len(term)+1)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], term)
	buf[offset] = 0x00
	return buf
}

// postingChunkID extracts the chunk ID from a term posting key.
func postingChunkID(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeDocumentKey generates a key for a document registry record by path.
func makeDocumentKey(path string) []byte {
	return []byte(documentRecordPrefix + ":" + path)
}

// makeLexiconStatsKey generates the singleton key for lexicon totals.
func makeLexiconStatsKey() []byte {
	return []byte(lexiconStatsName)
}
