package model

// EntryOverhead approximates the fixed per-entry bookkeeping cost added to
// key and value lengths for memory accounting.
const EntryOverhead = 64

// Entry is a single cache record. The value, flags, expiry and cas fields
// are mutated only under the owning shard's exclusive lock; touchedAt and
// freq are atomics so recency/frequency signals survive read-mostly paths.
type Entry struct {
	key     *Key
	value   []byte
	expires int64  // absolute unix nano, 0 = never expires
	flags   uint32 // opaque caller data, passed through unchanged
	cas     uint64

	touchedAt int64  // atomic: coarse last-access stamp (lru signal)
	freq      uint32 // atomic: saturating access counter (lfu signal)

	next *Entry // same-bucket collision chain
}

// NewEntry builds an owned entry: the key bytes are copied, the value slice
// is taken over by the entry (the caller must not reuse it).
func NewEntry(key *Key, value []byte, expires int64, flags uint32, cas uint64, now int64) *Entry {
	key.Own()
	return &Entry{
		key:       key,
		value:     value,
		expires:   expires,
		flags:     flags,
		cas:       cas,
		touchedAt: now,
	}
}

func (e *Entry) Key() *Key {
	if e == nil {
		return nil
	}
	return e.key
}

func (e *Entry) Value() []byte  { return e.value }
func (e *Entry) Expires() int64 { return e.expires }
func (e *Entry) Flags() uint32  { return e.flags }
func (e *Entry) CAS() uint64    { return e.cas }

// Weight is the tracked memory footprint of the entry.
func (e *Entry) Weight() int64 {
	return int64(len(e.key.Bytes()) + len(e.value) + EntryOverhead)
}

// SwapValue replaces the value in place and returns the byte delta the
// owning shard must apply to its memory counter. Shard lock required.
func (e *Entry) SwapValue(value []byte) (bytesDelta int64) {
	bytesDelta = int64(len(value)) - int64(len(e.value))
	e.value = value
	return bytesDelta
}

// SetExpires replaces the absolute expiry deadline. Shard lock required.
func (e *Entry) SetExpires(expires int64) { e.expires = expires }

// SetFlags replaces the opaque flags. Shard lock required.
func (e *Entry) SetFlags(flags uint32) { e.flags = flags }

// SetCAS assigns a fresh version after a successful mutation. Shard lock
// required. Versions come from a cache-global monotonic source so a
// delete+re-insert can never reissue a value a concurrent reader holds.
func (e *Entry) SetCAS(cas uint64) { e.cas = cas }

// Next returns the following entry in the collision chain.
func (e *Entry) Next() *Entry { return e.next }

// SetNext links the following entry in the collision chain. Shard lock
// required.
func (e *Entry) SetNext(next *Entry) { e.next = next }
