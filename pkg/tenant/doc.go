// Package tenant manages namespaces and their cascade deletion.
package tenant
