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


// Package cache provides a persistent semantic answer cache backed by SQLite.
//
// Instead of exact string matching, lookups embed the incoming query and
// compare it against the stored embeddings of recent entries by cosine
// similarity; a lookup hits when the best candidate clears a configured
// threshold. Entries expire after a TTL and the store is capped with
// least-recently-accessed eviction.
//
// A miss is a normal outcome, not an error: Get returns nil both when no
// candidate is similar enough and when a collaborator fails (failures are
// logged and counted as misses so the caller's answer path never depends
// on cache health).
//
// The store is safe for concurrent use. SQLite access is serialized
// through a single pooled connection and the counters are guarded by a
// mutex.
package cache
