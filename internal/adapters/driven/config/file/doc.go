// Package file provides the TOML-backed configuration store.
//
// Keys use dot notation ("canvas.z_max"). On disk they are written as nested
// tables, so a hand-edited config.toml reads naturally:
//
//	[canvas]
//	z_max = 9999
//	history_throttle = "350ms"
//
//	[storage]
//	backend = "sqlite"
//
// Environment variables override file values. The variable for a key is the
// key upper-cased with dots replaced by underscores and prefixed with NEXUS_,
// e.g. NEXUS_STORAGE_BACKEND. Overrides are never written back to disk.
package file
