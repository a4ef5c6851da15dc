// Package engine sequences the startup and shutdown of the device
// synchronization engine: the sync flag, the broadcast router, the power
// controller and the device registry.
package engine
