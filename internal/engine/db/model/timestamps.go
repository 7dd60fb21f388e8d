package model

import "sync/atomic"

const freqCeiling = 255 // saturating: wide enough to rank, cheap to age

// Touch refreshes the coarse recency stamp and bumps the saturating access
// counter. Safe without the shard lock.
func (e *Entry) Touch(now int64) {
	atomic.StoreInt64(&e.touchedAt, now)
	for {
		f := atomic.LoadUint32(&e.freq)
		if f >= freqCeiling {
			return
		}
		if atomic.CompareAndSwapUint32(&e.freq, f, f+1) {
			return
		}
	}
}

// TouchedAt returns the coarse last-access stamp.
func (e *Entry) TouchedAt() int64 {
	return atomic.LoadInt64(&e.touchedAt)
}

// Frequency returns the saturating access count.
func (e *Entry) Frequency() uint32 {
	return atomic.LoadUint32(&e.freq)
}

// AgeFrequency halves the access count. Called by periodic aging so stale
// popularity decays instead of pinning entries forever.
func (e *Entry) AgeFrequency() {
	for {
		f := atomic.LoadUint32(&e.freq)
		if atomic.CompareAndSwapUint32(&e.freq, f, f>>1) {
			return
		}
	}
}
