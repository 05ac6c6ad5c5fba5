// Copyright 2025 Solenne Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"github.com/mus-format/mus-go/varint"

	"github.com/solenne/docent/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	var id core.ID
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, core.ChunkMUS.Size(*chunk))
	core.ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := core.ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// MarshalDocumentRecord serializes a DocumentRecord to bytes.
func MarshalDocumentRecord(record *core.DocumentRecord) []byte {
	buf := make([]byte, core.DocumentRecordMUS.Size(*record))
	core.DocumentRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalDocumentRecord deserializes a DocumentRecord from bytes.
func UnmarshalDocumentRecord(data []byte) (*core.DocumentRecord, error) {
	record, _, err := core.DocumentRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarshalLexiconStats serializes LexiconStats to bytes.
func MarshalLexiconStats(stats core.LexiconStats) []byte {
	buf := make([]byte, core.LexiconStatsMUS.Size(stats))
	core.LexiconStatsMUS.Marshal(stats, buf)
	return buf
}

// UnmarshalLexiconStats deserializes LexiconStats from bytes.
func UnmarshalLexiconStats(data []byte) (core.LexiconStats, error) {
	stats, _, err := core.LexiconStatsMUS.Unmarshal(data)
	return stats, err
}

// MarshalTermFrequency serializes a posting's term frequency to bytes.
func MarshalTermFrequency(tf uint32) []byte {
	buf := make([]byte, varint.Uint32.Size(tf))
	varint.Uint32.Marshal(tf, buf)
	return buf
}

// UnmarshalTermFrequency deserializes a posting's term frequency from bytes.
func UnmarshalTermFrequency(data []byte) (uint32, error) {
	tf, _, err := varint.Uint32.Unmarshal(data)
	return tf, err
}
