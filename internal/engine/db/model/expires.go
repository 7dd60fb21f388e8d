package model

// IsExpiredAt reports whether the entry's deadline has passed at the given
// time. A zero deadline never expires. An expired entry is logically absent
// even before it is physically swept.
func (e *Entry) IsExpiredAt(now int64) bool {
	if e == nil {
		return false
	}
	return e.expires != 0 && e.expires <= now
}
