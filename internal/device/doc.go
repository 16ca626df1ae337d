// Package device implements hotload.NativeBridge on top of a local
// directory. It keeps installed packages, the pending install record and
// the list of rolled back updates on disk, the way the mobile runtime keeps
// them in app storage, so the sync engine can be driven end to end from a
// terminal or a test.
package device
