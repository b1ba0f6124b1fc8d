// Package types defines the core data structures shared across nacoslite.
package types
