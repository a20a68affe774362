// Package database provides SQLite connectivity for the command audit trail.
//
// This package manages:
//   - Database connection with optional WAL mode
//   - Schema migrations loaded from an fs.FS (normally the embedded migrations package)
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Audit.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. Migrations are additive; new columns must be nullable
// or carry a default.
//
// The special path ":memory:" opens a private in-memory database, which is
// what the tests use.
package database
