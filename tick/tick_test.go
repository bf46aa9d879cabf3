package tick

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCanonical string

func (f fakeCanonical) CanonicalBytes() []byte { return []byte(f) }

func TestFromStringRequiresFourBytes(t *testing.T) {
	for _, s := range []string{"", "ab", "abcde", "xyz"} {
		_, err := FromString(s)
		assert.Errorf(t, err, "expected %q to be rejected", s)
	}

	tk, err := FromString("ordi")
	require.NoError(t, err)
	assert.Equal(t, "ordi", tk.String())
}

func TestLowerIsCaseFoldedAndZeroPadded(t *testing.T) {
	upper, err := FromString("ORDI")
	require.NoError(t, err)
	lower, err := FromString("ordi")
	require.NoError(t, err)

	assert.Equal(t, upper.Lower(), lower.Lower(), "upper and lower forms of the same ticker must collide")
	assert.Equal(t, 32, len(lower.Lower().Hex()), "16 bytes hex-encoded is 32 chars")
}

func TestLowerDistinctTickersDoNotCollide(t *testing.T) {
	a, err := FromString("ordi")
	require.NoError(t, err)
	b, err := FromString("sats")
	require.NoError(t, err)

	assert.NotEqual(t, a.Lower(), b.Lower())
}

func TestPidRoundTrip(t *testing.T) {
	id := Calculate("earn", 21000000, 8, fakeCanonical("from"), fakeCanonical("to"))
	pid := NewPid(id, 3)

	assert.Equal(t, 13, len(string(pid)))

	gotID, err := pid.TickID()
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	gotIndex, err := pid.PoolIndex()
	require.NoError(t, err)
	assert.Equal(t, uint8(3), gotIndex)
}

func TestPidRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "tooshort", "abcdef0123#zz", "abcdef012345#00"} {
		p := Pid(s)
		_, err1 := p.TickID()
		_, err2 := p.PoolIndex()
		assert.True(t, err1 != nil || err2 != nil, "expected %q to be rejected by at least one accessor", s)
	}
}

func TestCalculateIsDeterministicAndDeployerSensitive(t *testing.T) {
	id1 := Calculate("earn", 1000, 8, fakeCanonical("alice"), fakeCanonical("bob"))
	id2 := Calculate("earn", 1000, 8, fakeCanonical("alice"), fakeCanonical("bob"))
	assert.Equal(t, id1, id2, "TickID derivation must be deterministic")

	id3 := Calculate("earn", 1000, 8, fakeCanonical("carol"), fakeCanonical("bob"))
	assert.NotEqual(t, id1, id3, "different deployers must yield different pool identities")
}

func TestFromStringTickIDRoundTrip(t *testing.T) {
	id := Calculate("earn", 1, 8, fakeCanonical("a"), fakeCanonical("b"))
	got, err := FromStringTickID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = FromStringTickID("xyz")
	assert.Error(t, err)
}
