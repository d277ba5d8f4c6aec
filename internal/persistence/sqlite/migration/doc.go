// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files live in an fs.FS (normally an embedded directory) and follow
// the naming convention {version}_{description}.sql, e.g. "001_initial_schema.sql".
// Each file runs in its own transaction together with the row recording it in
// schema_migrations, so a failed file leaves no trace.
//
// Example usage:
//
//	manager := NewManager(NewScanner(files, "migrations"), NewSQLiteExecutor(db), logger)
//	if _, err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
