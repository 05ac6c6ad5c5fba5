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


// Package agent runs a bounded tool-using reasoning loop over the corpus.
//
// The Orchestrator answers one question per Ask call. Courtesy phrases
// are answered immediately from a canned reply, everything else first
// consults the semantic answer cache, and only on a miss does the
// reasoning loop start: the completion model is prompted with the tool
// inventory and a running transcript, its replies are parsed into tool
// invocations or a final answer, and observations from the tools are fed
// back until the model concludes or a cap is hit.
//
// Once started, the loop does not fail. Malformed model output becomes
// a corrective observation, failing tools report their
// failure as an observation, and exhausting the iteration or wall-clock
// budget yields a degraded best-effort answer. Freshly computed answers
// are written back to the cache asynchronously so the response is never
// delayed by the write.
package agent
