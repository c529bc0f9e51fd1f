// Package session persists sub-session transcripts so delegations can be
// resumed.
//
// Available stores:
//   - [MemoryStore] keeps records in memory (useful for testing).
//   - [FileStore] persists records as JSON files on disk.
//   - [SQLiteStore] persists records in a SQLite database.
//
// All stores report a missing record with an error wrapping
// [delegate.ErrSessionNotFound].
package session
