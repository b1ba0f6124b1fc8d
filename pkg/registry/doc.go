// Package registry implements the naming side of the server: service
// metadata, instance lifecycle, heartbeats and health soft state.
package registry
