// Package database provides SQLite connectivity for the logger's
// non-volatile state.
//
// This package manages:
//   - Database connection with optional WAL mode
//   - Schema migrations read from an fs.FS (see the migrations package)
//   - WAL checkpoints before deep sleep
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql. Files
// ending in .down.sql are ignored; the firmware only migrates forward.
package database
