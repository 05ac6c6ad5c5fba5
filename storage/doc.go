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


// Package storage defines the persistence contracts for the document
// index: what a chunk store and a document registry must do, independent
// of the engine behind them. The badger subpackage is the production
// implementation; consumers depend only on the interfaces here.
//
// # Repositories
//
//   - Repository: transaction and lifecycle operations shared by all
//     repositories
//   - ChunkRepository: indexed chunks plus the lexical index (term
//     postings and lexicon totals) maintained transactionally alongside
//     them
//   - DocumentRepository: the per-source-file registry used for
//     idempotent re-indexing
//
// Concrete constructors return concrete types (badger.NewChunkRepository
// returns *badger.ChunkRepository); code that stores or passes a
// repository around declares the interface from this package.
//
// # Usage
//
// Create repository instances over a shared backend:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	chunks, err := badger.NewChunkRepository(backend)
//
// Tests use the in-memory backend, either directly with
// badger.OpenBackend("", true) or through badger.NewMemoryRepositories.
//
// # Serialization
//
// Records are persisted in the MUS binary format; the Marshal/Unmarshal
// helpers in this package wrap the serializers defined in core. Field
// order is the wire format.
//
// # Concurrency and contexts
//
// Repository implementations are safe for concurrent use. Every method
// takes a context.Context and returns early when it is cancelled.
package storage
