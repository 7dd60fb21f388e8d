package model

import (
	"bytes"
	"sync"

	"github.com/zeebo/xxh3"
)

// Key carries the 64-bit routing hash of the raw key bytes plus the full
// 128-bit digest used to cut short most collision-chain comparisons.
type Key struct {
	v   uint64
	hi  uint64
	lo  uint64
	raw []byte
}

var hasherPool = sync.Pool{New: func() any { return xxh3.New() }}

// NewKey hashes raw key bytes. The slice is referenced, not copied; call
// Own before attaching the key to an entry that outlives the caller's buffer.
func NewKey(raw []byte) *Key {
	hasher := hasherPool.Get().(*xxh3.Hasher)
	hasher.Reset()
	_, _ = hasher.Write(raw)

	u128 := hasher.Sum128()
	k := &Key{
		v:   hasher.Sum64(),
		hi:  u128.Hi,
		lo:  u128.Lo,
		raw: raw,
	}

	hasherPool.Put(hasher)
	return k
}

// Value returns the 64-bit hash used for shard routing and table placement.
func (k *Key) Value() uint64 { return k.v }

// Bytes returns the raw key bytes. Immutable once the key is owned.
func (k *Key) Bytes() []byte { return k.raw }

// IsTheSame reports whether two keys are identical. The 128-bit digest is
// compared first; raw bytes settle the (astronomically rare) digest tie.
func (k *Key) IsTheSame(key *Key) bool {
	if k.v != key.v || k.hi != key.hi || k.lo != key.lo {
		return false
	}
	return bytes.Equal(k.raw, key.raw)
}

// Own copies the raw key bytes into storage the key controls. Called once at
// insert so the entry never aliases a caller buffer.
func (k *Key) Own() {
	owned := make([]byte, len(k.raw))
	copy(owned, k.raw)
	k.raw = owned
}
