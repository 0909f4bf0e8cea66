// Package prometheus renders engine metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] wraps an [auth.Engine] and exposes an
// [http.Handler]. Counter names are auth_*_total; the one histogram is
// auth_password_hash_seconds; rate-limiter table size and sweep activity are
// always exported.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
