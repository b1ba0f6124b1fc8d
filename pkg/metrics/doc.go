// Package metrics exposes Prometheus instrumentation for nacoslite.
package metrics
