// Package database provides the SQLite store behind the accessor
// instance registry.
//
// The connection runs in WAL mode with a single writer. Schema changes are
// versioned .up.sql/.down.sql pairs applied by Migrate, each in its own
// transaction, and recorded in schema_migrations.
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
package database
