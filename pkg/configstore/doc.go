// Package configstore implements the dynamic configuration store:
// publish/get/delete with per-key history, rollback, the beta overlay,
// search, and the ZIP import/export/clone surface.
package configstore
