// Package nvstore provides the non-volatile key/value store.
//
// Values written here survive a deep sleep, which on this device is a full
// process restart. The SQLite implementation keeps them in the nvstore table
// of the logger database; Memory is used by tests and bench runs without
// persistent storage.
//
// Usage:
//
//	store := nvstore.NewSQLite(db)
//	if err := store.Set(ctx, "paused", "1"); err != nil {
//	    return err
//	}
//	v, ok, err := store.Get(ctx, "paused")
package nvstore
