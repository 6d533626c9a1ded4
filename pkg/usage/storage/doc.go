// Package storage persists usage events beyond the engine's in-memory log.
//
// Two backends implement Backend:
//
//   - MemoryBackend: a map, for tests and ephemeral deployments
//   - SQLiteBackend: a single-file database using the pure Go
//     modernc.org/sqlite driver, in WAL mode with prepared statements
//
// Events are keyed by request ID. Saving an event whose request ID is
// already stored updates its outcome fields only, so the selection and
// its later outcome can be written independently.
package storage
