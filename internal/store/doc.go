// Package store provides task persistence for the gateway using SQLite.
//
// # Architecture
//
// Tool handlers never touch SQL directly. They talk to the TaskStore
// interface, which has two implementations:
//
//   - SQLiteStore: file-backed storage on modernc.org/sqlite (pure Go, no cgo)
//   - MockStore: in-memory storage for unit tests
//
// # Data Model
//
//   - Task: integer id, title, description, nullable due date, status,
//     priority, category, created/updated timestamps
//
// Timestamps are stored as RFC3339 text in UTC so that lexical ordering of
// the due_date column matches chronological ordering.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Database file locations:
//
//   - Production: /var/lib/punch-gateway/tasks.db
//   - Development: ./data/tasks.db
//   - Testing: a file under t.TempDir()
//
// # Error Handling
//
//   - ErrNotFound: the task id does not exist
//
// All methods accept context.Context for cancellation support.
//
// # Migrations
//
// The schema is created on open. Columns added after the first release are
// applied by runMigrations, which checks pragma_table_info before altering.
package store
