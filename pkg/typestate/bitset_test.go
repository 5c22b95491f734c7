package typestate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitset(t *testing.T) {
	a := bitsetOf(1, 3, 70)
	b := bitsetOf(3, 130)

	require.True(t, a.has(70))
	require.False(t, a.has(2))
	require.False(t, a.has(-1))
	require.False(t, a.has(1000))
	require.Equal(t, 3, a.count())
	require.Equal(t, 1, a.first())
	require.Equal(t, 70, a.last())
	require.Equal(t, "{1,3,70}", a.String())

	require.Equal(t, bitsetOf(1, 3, 70, 130), a.or(b))
	require.Equal(t, bitsetOf(3), a.and(b))
	require.Equal(t, bitsetOf(1, 70), a.andNot(b))
	require.Nil(t, bitsetOf(3).andNot(b))
	require.True(t, a.intersects(b))
	require.False(t, bitsetOf(1).intersects(b))
	require.True(t, bitsetOf(3).subsetOf(b))
	require.False(t, b.subsetOf(a))
	require.True(t, bitsetOf(3, 130).equal(b))

	// Operations never modify their receiver.
	c := a.with(5)
	require.False(t, a.has(5))
	require.True(t, c.has(5))
	require.Equal(t, -1, bitset(nil).first())
}
