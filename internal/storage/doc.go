// Package storage persists per-site notification state between runs.
//
// The state file (state.json in the data directory) records a fingerprint of
// the last message dispatched for each site so an unchanged message is not
// posted again. Read-modify-write cycles hold the Storage mutex and an
// exclusive lock on state.json.lock, so neither goroutines sharing a Storage
// nor overlapping runs lose each other's updates.
// The default location is ~/.local/share/camp-watch/.
package storage
