// Package cli defines the Cobra command tree for the hotload CLI. Each file
// in this package registers one top-level command (check, sync, ready, etc.)
// with the root command. Commands open the filesystem device named by the
// configuration and drive the sync engine against it; they only handle flag
// parsing, terminal output and user interaction.
package cli
