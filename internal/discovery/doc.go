// Package discovery finds WLED controllers on the local network.
//
// A Scan sends one mDNS query for _wled._tcp, then reads each answering
// controller's /json/info to learn its name and LED count. Found.Config
// turns a result into a device config that can be registered directly.
package discovery
