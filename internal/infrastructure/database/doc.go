// Package database provides SQLite connectivity for the chroma-sync settings store.
//
// This package manages:
//   - Database connection with WAL mode, busy timeout and foreign keys
//   - Schema migrations read from an fs.FS (normally migrations.FS)
//   - Transaction helper (InTx)
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or carry a default,
// and every .up.sql ships with a .down.sql.
package database
