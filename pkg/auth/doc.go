// Package auth issues and validates console access tokens.
package auth
