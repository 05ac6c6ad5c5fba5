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


// Package openai implements ai.Provider for OpenAI-compatible APIs.
//
// Embedding and chat completion go through langchaingo, so any server
// speaking the OpenAI wire format works: OpenAI itself, Ollama, LocalAI,
// vLLM, and similar. Embedding and completion can target different hosts,
// which matters when a small local model embeds and a larger one answers.
//
// # Usage
//
//	config := ai.DefaultConfig()
//	// Or customize:
//	config := &ai.Config{
//	    EmbeddingHost:  "http://localhost:11434",  // /v1 added automatically
//	    LLMHost:        "http://localhost:11434",
//	    EmbeddingModel: "embeddinggemma",
//	    LLMModel:       "qwen2.5:7b",
//	}
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "sample text")
//	answer, err := provider.Completer().Complete(ctx, "You are concise.", "Summarize BM25.")
package openai
