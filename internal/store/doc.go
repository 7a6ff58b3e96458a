// Package store is the SQLite implementation of the engine's storage
// collaborator.
//
// It persists tests (including their result lists and usage summary),
// personas, and flushed usage records. Nested document-shaped fields
// (audience, settings, results) are serialized as JSON columns;
// usage records get first-class columns so spend reports can be
// queried without deserializing anything.
//
// SQLite runs in WAL mode with a single writer connection, which is
// plenty for this engine: the orchestrator writes a test record twice
// per run and readers poll concurrently through WAL snapshots.
package store
