// Package log provides structured logging for nacoslite built on zerolog.
package log
