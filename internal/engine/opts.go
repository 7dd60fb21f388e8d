package engine

import "time"

// StoreOptions refines a single store. The zero value is a plain
// insert-or-replace with the cache's default TTL.
type StoreOptions struct {
	// TTL is the relative lifespan; it is converted to an absolute deadline
	// at write time. Zero falls back to the cache default; negative values
	// force a never-expiring entry even when a default TTL is configured.
	TTL time.Duration

	// Expires sets the absolute unix-nano deadline directly and takes
	// precedence over TTL. Used by snapshot restore.
	Expires int64

	// Flags is opaque 32-bit caller data stored with the entry.
	Flags uint32

	// CAS is the version the caller observed; checked only when CASOp is set.
	CAS   uint64
	CASOp bool

	// KeepTTL preserves the existing entry's deadline on replace.
	KeepTTL bool

	// NX stores only if the key is absent; XX only if it is present.
	NX bool
	XX bool

	// Entry, when set, peeks at the old entry about to be replaced, under
	// the shard lock. Returning false keeps the old entry (Canceled).
	Entry func(v EntryView) bool
}

// LoadOptions refines a single load.
type LoadOptions struct {
	// NoTouch skips the recency/frequency update for this access.
	NoTouch bool
}

// DeleteOptions refines a single delete.
type DeleteOptions struct {
	// Entry, when set, observes the entry about to be deleted, under the
	// shard lock. Returning false keeps the entry (Canceled).
	Entry func(v EntryView) bool
}
