// Package staging provides the embedded tabular store used as scratch storage
// between file ingestion and reads.
//
// The store is an in-memory (or file-backed) SQLite database by default and
// can be switched to DuckDB. All engines are reached through database/sql on a
// single long-lived connection: an in-memory engine loses its data when the
// owning connection closes, so callers keep one Store per session and reuse it
// across loads and reads.
//
// Usage:
//
//	store, err := staging.Open(ctx, staging.Config{Location: staging.MemoryLocation})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
package staging
