// Package database provides SQLite connectivity for the hub.
//
// The hub stores refresh history here. The live entity state is kept in
// memory and is not persisted.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Each migration runs in its own transaction
// and is recorded in schema_migrations.
package database
