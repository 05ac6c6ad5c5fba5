// Package ingestion turns source files into embedded, indexed chunks.
//
// The Pipeline loads documents (via a pluggable Loader), splits them
// into overlapping windows, embeds the windows in parallel batches, and
// stores them together with a per-file registry record. The registry
// lets re-indexing detect unchanged files cheaply and replace a changed
// file's chunks wholesale, so pointing the pipeline at the same
// directory twice is safe.
//
// The Watcher keeps an index in sync with a directory: file creations
// and writes re-index the file after a debounce window, deletions drop
// its chunks.
package ingestion
