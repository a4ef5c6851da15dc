// Package settings persists the chroma-sync settings record: broadcast
// application ID, sync flag, run-at-boot flag, and the ordered device list.
//
// Flags live in a key/value settings table; device configs live in the
// devices table behind device.SQLiteRepository. On first run the YAML
// configuration seeds an empty store; afterwards the database is the
// source of truth and the YAML device list is ignored.
package settings
