// Package types defines shared Go types passed between the relay worker and
// the components that observe it (metrics, the live tap). These are the
// in-memory representations; the tap serialises them as JSON.
package types
