// Package internaldefs holds the metric names, help strings and bucket
// bounds used by exporters, so every exporter publishes identical names.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
