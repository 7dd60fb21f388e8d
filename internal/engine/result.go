package engine

// Result is the outcome of a single engine operation. Not-found and CAS
// mismatch are expected, recoverable outcomes, reported here instead of as
// errors.
type Result int

const (
	// Inserted - store created a new entry.
	Inserted Result = iota + 1
	// Replaced - store mutated an existing entry in place.
	Replaced
	// Found - load reached a live entry and ran its callback.
	Found
	// NotFound - key absent, lazily expired, or a conditional store's
	// precondition saw no entry.
	NotFound
	// Deleted - delete removed an existing entry.
	Deleted
	// CASMismatch - the presented version is stale; nothing was mutated.
	CASMismatch
	// Canceled - an entry callback vetoed the store or delete.
	Canceled
)

func (r Result) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Deleted:
		return "deleted"
	case CASMismatch:
		return "cas_mismatch"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Reason explains why an entry left the cache through the eviction callback.
type Reason int

const (
	// ReasonExpired - the entry's TTL elapsed (lazy removal or sweep).
	ReasonExpired Reason = iota + 1
	// ReasonLowMem - memory-pressure eviction reclaimed the entry.
	ReasonLowMem
	// ReasonCleared - Clear removed every entry.
	ReasonCleared
)

func (r Reason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonLowMem:
		return "lowmem"
	case ReasonCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// EntryView is the zero-copy projection of an entry handed to callbacks.
// Key and Value alias the shard-owned buffers and are valid only for the
// duration of the callback, which always runs under the shard lock.
type EntryView struct {
	Shard   int
	Time    int64 // the operation's notion of "now", unix nano
	Key     []byte
	Value   []byte
	Expires int64
	Flags   uint32
	CAS     uint64
}

// Update is the optional mutation a load callback may request against the
// entry it just read. It is applied under the same critical section as the
// read, before the shard lock is released: the read-modify pair is atomic
// with respect to every other operation on that key. The engine takes
// ownership of Value. Flags and Expires replace the entry's values as given;
// copy them from the view to preserve them (a zero Expires means never).
type Update struct {
	Value   []byte
	Flags   uint32
	Expires int64
}

// LoadFunc observes one entry. A non-nil return requests an in-place update.
type LoadFunc func(v EntryView) *Update

// EvictionFunc observes every entry removed by expiration, memory pressure,
// or Clear. It runs under the owning shard's lock; keep it lightweight.
type EvictionFunc func(shard int, reason Reason, v EntryView)

// IterAction steers Iterate. Delete may be OR-combined with Stop.
type IterAction int

const (
	IterContinue IterAction = 0
	IterStop     IterAction = 1
	IterDelete   IterAction = 2
)

// IterFunc observes one live entry during a whole-cache walk.
type IterFunc func(v EntryView) IterAction
