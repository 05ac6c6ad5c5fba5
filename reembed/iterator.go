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

package reembed

import (
	"context"

	"github.com/solenne/docent/core"
	"github.com/solenne/docent/storage"
)

// DefaultBatchSize is the default number of chunks fetched per batch.
const DefaultBatchSize = 100

// ChunkIterator walks every indexed chunk in batches.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates an iterator over repo.
// batchSize falls back to DefaultBatchSize when not positive.
func NewChunkIterator(repo storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ChunkIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn once per batch until the corpus is exhausted or fn
// returns an error. The ID set is snapshotted up front, so chunks
// added mid-walk are not visited and chunks deleted mid-walk are
// silently skipped. Context cancellation is checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	var ids []core.ID
	err := it.repo.ForEachChunk(ctx, func(chunk *core.Chunk) error {
		ids = append(ids, chunk.Id)
		return nil
	})
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	for start := 0; start < len(ids); start += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+it.batchSize, len(ids))
		chunks, err := it.repo.GetChunks(ctx, ids[start:end]...)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			continue
		}
		if err := fn(chunks); err != nil {
			return err
		}
	}

	return nil
}
