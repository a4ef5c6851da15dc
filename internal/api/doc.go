// Package api implements the local HTTP control API and WebSocket hub for
// chroma-sync.
//
// This package provides:
//   - REST endpoints for the sync flag, the run-at-boot flag, the broadcast app ID and status
//   - Device config CRUD with lifecycle operations per device
//   - WLED discovery over mDNS
//   - A WebSocket hub that streams broadcast status, color previews,
//     device reports and sync changes
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// The server sits beside the synchronization engine. Config changes go
// through the device repository and then the registry, so a device is only
// registered once its config is stored. The Hub is a broadcast.Presenter
// and is handed to the router at startup.
//
// # Security
//
// There are no user accounts. The server binds to loopback by default and
// must not be exposed beyond the host.
package api
