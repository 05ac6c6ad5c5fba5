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


package core

import (
	"time"

	mus "github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the records persisted in the index store. Written by
// hand against the mus-go primitives; field order is the wire format, so
// append new fields at the end only.

var (
	// IDMUS serializes ID values.
	IDMUS = idMUS{}
	// ChunkMUS serializes Chunk records.
	ChunkMUS = chunkMUS{}
	// DocumentRecordMUS serializes DocumentRecord registry rows.
	DocumentRecordMUS = documentRecordMUS{}
	// LexiconStatsMUS serializes corpus-wide lexicon totals.
	LexiconStatsMUS = lexiconStatsMUS{}
)

var (
	_ mus.Serializer[ID]             = IDMUS
	_ mus.Serializer[Chunk]          = ChunkMUS
	_ mus.Serializer[DocumentRecord] = DocumentRecordMUS
	_ mus.Serializer[LexiconStats]   = LexiconStatsMUS
)

type idMUS struct{}

func (idMUS) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

type chunkMUS struct{}

func (chunkMUS) Marshal(c Chunk, bs []byte) (n int) {
	n = IDMUS.Marshal(c.Id, bs)
	n += ord.String.Marshal(c.Content, bs[n:])
	n += ord.String.Marshal(c.Source, bs[n:])
	n += ord.String.Marshal(c.Format, bs[n:])
	n += varint.Int.Marshal(c.Index, bs[n:])
	n += varint.Int.Marshal(c.Page, bs[n:])
	n += marshalVector(c.Vector, bs[n:])
	n += marshalTime(c.IndexedAt, bs[n:])
	n += marshalTime(c.UpdatedAt, bs[n:])
	return n
}

func (chunkMUS) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	var n1 int
	if c.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if c.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Source, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Format, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Index, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Page, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Vector, n1, err = unmarshalVector(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.IndexedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	c.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return c, n, err
}

func (chunkMUS) Size(c Chunk) (size int) {
	size = IDMUS.Size(c.Id)
	size += ord.String.Size(c.Content)
	size += ord.String.Size(c.Source)
	size += ord.String.Size(c.Format)
	size += varint.Int.Size(c.Index)
	size += varint.Int.Size(c.Page)
	size += sizeVector(c.Vector)
	size += sizeTime(c.IndexedAt)
	size += sizeTime(c.UpdatedAt)
	return size
}

func (s chunkMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type documentRecordMUS struct{}

func (documentRecordMUS) Marshal(d DocumentRecord, bs []byte) (n int) {
	n = ord.String.Marshal(d.Path, bs)
	n += ord.String.Marshal(d.Name, bs[n:])
	n += IDMUS.Marshal(d.ContentHash, bs[n:])
	n += varint.Int.Marshal(len(d.ChunkIds), bs[n:])
	for _, id := range d.ChunkIds {
		n += IDMUS.Marshal(id, bs[n:])
	}
	n += marshalTime(d.IndexedAt, bs[n:])
	return n
}

func (documentRecordMUS) Unmarshal(bs []byte) (d DocumentRecord, n int, err error) {
	var n1 int
	if d.Path, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if d.Name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.ContentHash, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	var count int
	if count, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	// Each ID takes at least one byte, so a count beyond the remaining
	// length is a corrupt prefix, not a long list.
	if count < 0 || count > len(bs)-n {
		return d, n, ErrCorruptRecord
	}
	if count > 0 {
		d.ChunkIds = make([]ID, count)
		for i := 0; i < count; i++ {
			if d.ChunkIds[i], n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
				return d, n + n1, err
			}
			n += n1
		}
	}
	d.IndexedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return d, n, err
}

func (documentRecordMUS) Size(d DocumentRecord) (size int) {
	size = ord.String.Size(d.Path)
	size += ord.String.Size(d.Name)
	size += IDMUS.Size(d.ContentHash)
	size += varint.Int.Size(len(d.ChunkIds))
	for _, id := range d.ChunkIds {
		size += IDMUS.Size(id)
	}
	size += sizeTime(d.IndexedAt)
	return size
}

func (s documentRecordMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type lexiconStatsMUS struct{}

func (lexiconStatsMUS) Marshal(l LexiconStats, bs []byte) (n int) {
	n = varint.Uint64.Marshal(l.ChunkCount, bs)
	n += varint.Uint64.Marshal(l.TokenCount, bs[n:])
	return n
}

func (lexiconStatsMUS) Unmarshal(bs []byte) (l LexiconStats, n int, err error) {
	var n1 int
	if l.ChunkCount, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	l.TokenCount, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	return l, n, err
}

func (lexiconStatsMUS) Size(l LexiconStats) int {
	return varint.Uint64.Size(l.ChunkCount) + varint.Uint64.Size(l.TokenCount)
}

func (s lexiconStatsMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil || count == 0 {
		return nil, n, err
	}
	// Elements are fixed 4-byte floats; bound the allocation by what the
	// buffer can actually hold before trusting the prefix.
	if count < 0 || count > (len(bs)-n)/4 {
		return nil, n, ErrCorruptRecord
	}
	v = make([]float32, count)
	var n1 int
	for i := 0; i < count; i++ {
		if v[i], n1, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
			return nil, n + n1, err
		}
		n += n1
	}
	return v, n, nil
}

func sizeVector(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

// Times travel as UnixMicro; the zero time round-trips as zero.
func marshalTime(t time.Time, bs []byte) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Marshal(micros, bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || micros == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Size(micros)
}
