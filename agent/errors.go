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


package agent

import "errors"

var (
	// ErrNoCompleter is returned when no completion model is provided.
	ErrNoCompleter = errors.New("completion model required")

	// ErrNoRetriever is returned when the retrieval tool is built without
	// a retriever.
	ErrNoRetriever = errors.New("retriever required")

	// ErrEmptyQuestion is returned when Ask is called with a blank question.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// errUnparseable marks model output that is neither a tool invocation
	// nor a final answer. It stays inside the loop: the caller of Ask only
	// ever sees the corrective observation it turns into.
	errUnparseable = errors.New("model output is neither a tool invocation nor a final answer")
)
