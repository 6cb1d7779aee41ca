package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Scalars(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{String("abc"), `"abc"`},
		{Int(-42), `-42`},
		{Float(2.5), `2.5`},
		{Bool(true), `true`},
		{Bool(false), `false`},
		{Null{}, `null`},
	}
	for _, tc := range cases {
		b, err := MarshalCanonical(tc.v)
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(b))
	}
}

func TestMarshalCanonical_Tuple(t *testing.T) {
	b, err := MarshalCanonical(NewTuple(String("a"), Int(1), Null{}))
	require.NoError(t, err)
	assert.Equal(t, `["a",1,null]`, string(b))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical(String(`<a> & "b"`))
	require.NoError(t, err)
	assert.Equal(t, `"<a> & \"b\""`, string(b))
}

func TestMarshalCanonical_ControlCharacters(t *testing.T) {
	b, err := MarshalCanonical(String("a\nb\tc\x01"))
	require.NoError(t, err)
	assert.Equal(t, `"a\nb\tc\u0001"`, string(b))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// U+00E9 (precomposed) and U+0065 U+0301 (decomposed) must encode
	// identically, otherwise visually equal strings split set buckets.
	precomposed, err := MarshalCanonical(String("café"))
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(String("café"))
	require.NoError(t, err)
	assert.Equal(t, string(precomposed), string(decomposed))
}

func TestKey_DistinguishesKinds(t *testing.T) {
	// Equal never treats values of different kinds as equal, so their
	// canonical keys must not collide either.
	assert.NotEqual(t, Key(Int(1)), Key(Float(1)))
	assert.NotEqual(t, Key(Int(1)), Key(String("1")))
	assert.NotEqual(t, Key(Float(1)), Key(String("1")))
	assert.Equal(t, "1.0", Key(Float(1)))
	assert.Equal(t, "1", Key(Int(1)))
}

func TestFingerprint_DomainSeparation(t *testing.T) {
	data := []byte("payload")
	a := Fingerprint(DomainValue, data)
	b := Fingerprint(DomainPlan, data)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)

	// Stable across calls.
	assert.Equal(t, a, Fingerprint(DomainValue, data))
}
