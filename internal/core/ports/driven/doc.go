// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - ProjectStore: Project-scoped snapshot persistence
//   - Scheduler: Debounced and idle-time side effects
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - CompactionCodec: Compresses old history entries. Without it, history
//     stays uncompressed.
//   - CanvasObserver: Receives canvas events (metrics). Without it, nothing
//     is recorded.
//   - SettingsValidator: Structural validation of settings. Without it,
//     only domain-level checks run.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
