// Package logx configures publishbot's structured logging.
//
// The Logger type is a small value wrapper on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured (the system log under the data dir)
//   - Sinks swappable at runtime via Service.Apply (config hot reload)
package logx
