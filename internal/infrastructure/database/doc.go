// Package database provides SQLite persistence for the credential cache.
//
// The coop daemon persists only two values between restarts: the current
// bearer token and the selected device id. SQLite is still worth having
// over a flat file because writes are atomic under WAL mode, so a crash
// mid-save can never leave a half-written token on disk.
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/omletcoop.db", WALMode: true, BusyTimeout: 5})
//	if err != nil { ... }
//	defer db.Close()
//	if err := db.Setup(ctx); err != nil { ... }
//
// The database file is created with 0600 permissions because it holds a
// live bearer token.
package database
