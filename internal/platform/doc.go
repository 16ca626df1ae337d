// Package platform provides cross-platform filesystem helpers. On Windows,
// which has no Unix permission bits, permission changes are a no-op.
package platform
