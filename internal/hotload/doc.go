// Package hotload is the over-the-air update engine. A Client checks the
// release service for a newer content bundle, downloads it through the
// NativeBridge and installs it under a caller-selected InstallMode.
//
// Sync composes the whole lifecycle (readiness acknowledgement, check,
// optional user confirmation, download, install) behind a single-flight
// guard; CheckForUpdate, RemotePackage.Download and LocalPackage.Install
// expose the individual steps. All per-process state (cached configuration,
// readiness result, sync flag) belongs to the Client, so a new Client behaves
// like a freshly started application.
package hotload
