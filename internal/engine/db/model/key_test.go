package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewKey_SameBytesSameHash verifies identical raw keys hash identically.
func TestNewKey_SameBytesSameHash(t *testing.T) {
	k1 := NewKey([]byte("user:42"))
	k2 := NewKey([]byte("user:42"))

	require.Equal(t, k1.Value(), k2.Value())
	require.True(t, k1.IsTheSame(k2))
	require.True(t, k2.IsTheSame(k1))
}

// TestNewKey_DifferentBytes verifies distinct keys are not the same.
func TestNewKey_DifferentBytes(t *testing.T) {
	k1 := NewKey([]byte("user:42"))
	k2 := NewKey([]byte("user:43"))

	require.False(t, k1.IsTheSame(k2))
}

// TestKey_Own copies the raw bytes so later caller mutation is invisible.
func TestKey_Own(t *testing.T) {
	raw := []byte("mutable")
	k := NewKey(raw)
	k.Own()

	raw[0] = 'X'

	require.Equal(t, []byte("mutable"), k.Bytes())
}

// TestKey_NotOwned_AliasesCallerBuffer documents the pre-Own aliasing.
func TestKey_NotOwned_AliasesCallerBuffer(t *testing.T) {
	raw := []byte("mutable")
	k := NewKey(raw)

	raw[0] = 'X'

	require.Equal(t, []byte("Xutable"), k.Bytes())
}

// TestKey_EmptyKey hashes the empty key without panicking.
func TestKey_EmptyKey(t *testing.T) {
	k1 := NewKey([]byte{})
	k2 := NewKey([]byte{})

	require.True(t, k1.IsTheSame(k2))
}
