// Package config handles loading and validating chroma-sync configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (CHROMASYNC_*)
//   - Validation of required fields, collecting every problem at once
//   - Default value handling
//
// The app section only seeds the persisted settings record on first run.
// After that the settings store is authoritative for the broadcast app id,
// the sync flag, the run-at-boot flag and the device list.
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via environment variables
//   - The control API binds to loopback by default
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Broadcast.Source)
package config
