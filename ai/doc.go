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


// Package ai defines the service abstractions for the model-facing side
// of Docent: text embedding, chat completion, and pairwise relevance
// scoring. Retrieval, caching, and the answering agent consume these
// interfaces; nothing outside ai/ imports a model SDK directly.
//
// # Interfaces
//
//   - Embedder: turns text into dense vectors
//   - Completer: temperature-zero chat completions
//   - Scorer: scores (query, candidate) pairs for reranking
//   - Provider: bundles an Embedder and a Completer
//
// # Implementations
//
//   - ai/openai: langchaingo-backed clients for OpenAI-compatible APIs
//   - ai/rerank: Scorer speaking the TEI rerank protocol
//   - ai/mock: deterministic doubles for tests
//
// # Constructor return types
//
// Production constructors return interfaces:
//
//	provider, err := openai.NewProvider(config)  // ai.Provider
//
// Mock constructors return concrete types so tests can reach function
// fields and call counters:
//
//	embedder := mock.NewMockEmbedder()   // *mock.MockEmbedder
//	embedder.EmbedTextFunc = ...
//	count := embedder.CallCount()
//
// mock.NewMockProvider returns ai.Provider like the production
// constructor does; its GetMockEmbedder and GetMockCompleter methods
// expose the concrete doubles when a test needs them.
//
// # Usage
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Hello world")
//	answer, err := provider.Completer().Complete(ctx, "You are concise.", "What is BM25?")
package ai
