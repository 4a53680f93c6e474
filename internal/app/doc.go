// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the replay lifecycle, decoupled from any
// specific entrypoint like a CLI or server.
//
// A run loads the workload configuration, opens the volume, builds the
// block cache with its scheduler, replays every declared write and anchor in
// order, syncs the cache and reports what reached the volume.
package app
