// Package database provides SQLite connectivity for Hearth Core.
//
// This package manages:
//   - Opening the SQLite database with WAL mode and busy timeout pragmas
//   - Schema migrations embedded into the binary (see migrations package)
//   - Connection health checks
//
// SQLite is configured for a single writer with a connection pool of one,
// which matches the bridge's strictly sequential ingestion pipeline: one
// inbound message commits one transaction at a time.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/hearth.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
