package num

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "-1", "1.", ".1", "1e5", "1.2.3", "abc"} {
		_, err := Parse(s)
		assert.Errorf(t, err, "expected %q to be rejected", s)
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "123456789", "1.5", "0.000000000000000001"} {
		n, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, n.String())
	}
}

func TestParseRejectsScaleOverflow(t *testing.T) {
	_, err := Parse("1." + repeat("1", MaxScale+1))
	assert.Error(t, err)
}

func TestCheckedAddRescalesToCommonScale(t *testing.T) {
	a, err := Parse("1.5")
	require.NoError(t, err)
	b, err := Parse("2.25")
	require.NoError(t, err)

	sum, err := a.CheckedAdd(b)
	require.NoError(t, err)
	assert.Equal(t, "3.75", sum.String())
}

func TestCheckedSubUnderflowFails(t *testing.T) {
	a, err := Parse("1")
	require.NoError(t, err)
	b, err := Parse("2")
	require.NoError(t, err)

	_, err = a.CheckedSub(b)
	assert.Error(t, err)
}

func TestRescaleTruncatesOnDownscale(t *testing.T) {
	n, err := Parse("1.23456")
	require.NoError(t, err)

	down, err := n.Rescale(2)
	require.NoError(t, err)
	assert.Equal(t, "1.23", down.String())

	up, err := n.Rescale(8)
	require.NoError(t, err)
	assert.Equal(t, "1.23456000", up.String())
}

func TestToUint128RejectsFractional(t *testing.T) {
	n, err := Parse("1.5")
	require.NoError(t, err)
	_, err = n.ToUint128()
	assert.Error(t, err)
}

func TestFitsUint64(t *testing.T) {
	small, err := Parse("100")
	require.NoError(t, err)
	assert.True(t, small.FitsUint64())

	huge, err := Parse("340282366920938463463374607431768211455")
	require.NoError(t, err)
	assert.False(t, huge.FitsUint64())
}

func TestCmp(t *testing.T) {
	a, err := Parse("1.5")
	require.NoError(t, err)
	b, err := Parse("1.500")
	require.NoError(t, err)
	assert.Equal(t, 0, a.Cmp(b))

	c, err := Parse("2")
	require.NoError(t, err)
	assert.Equal(t, -1, a.Cmp(c))
	assert.Equal(t, 1, c.Cmp(a))
}

func TestCheckedPow(t *testing.T) {
	base, err := Parse("2")
	require.NoError(t, err)

	zero, err := base.CheckedPow(0)
	require.NoError(t, err)
	assert.Equal(t, "1", zero.String())

	cubed, err := base.CheckedPow(3)
	require.NoError(t, err)
	assert.Equal(t, "8", cubed.String())
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
