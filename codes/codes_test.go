package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/seqpack/alphabet"
)

func TestLookup_AllIDs(t *testing.T) {
	wantWidth := map[ID]uint8{
		DNAFourLetter:              2,
		DNAFourLetterCaseSensitive: 3,
		DNAIUPAC:                   4,
		DNAIUPACCaseSensitive:      5,
		AAIUPAC:                    5,
		AAIUPACCaseSensitive:       6,
	}
	for id := ID(0); id < numCodeSets; id++ {
		cs := Lookup(id)
		require.NotNil(t, cs, "code set %d", id)
		assert.Equal(t, id, cs.ID())
		assert.True(t, id.Valid())
		plain := id
		if id.IsComplement() {
			plain = id.Complement()
		}
		assert.Equal(t, wantWidth[plain], cs.Width(), "width of %s", cs.Name())
		assert.LessOrEqual(t, cs.Len(), 1<<cs.Width())
	}
	assert.False(t, numCodeSets.Valid())
}

func TestCodeSet_EncodeDecodeInverse(t *testing.T) {
	for id := ID(0); id < numCodeSets; id++ {
		cs := Lookup(id)
		for _, sym := range cs.Symbols() {
			s := sym
			if cs.IsComplement() {
				s = alphabet.Complement(sym)
			}
			c, ok := cs.Encode(s)
			require.True(t, ok, "%s must encode %q", cs.Name(), s)
			got, ok := cs.Decode(c)
			require.True(t, ok)
			assert.Equal(t, s, got, "%s", cs.Name())
		}
	}
}

func TestCodeSet_ComplementSharesCodes(t *testing.T) {
	plain := Lookup(DNAIUPAC)
	comp := Lookup(DNAIUPAC.Complement())
	require.Equal(t, DNAIUPACComplement, comp.ID())

	for _, sym := range []byte("ACGTRYN-") {
		c, ok := plain.Encode(sym)
		require.True(t, ok)
		got, ok := comp.Decode(c)
		require.True(t, ok)
		assert.Equal(t, alphabet.Complement(sym), got)
	}
	assert.Equal(t, DNAIUPAC, DNAIUPACComplement.Complement())
	assert.Equal(t, AAIUPAC, AAIUPAC.Complement())
}

func TestCodeSet_Rejects(t *testing.T) {
	cs := Lookup(DNAFourLetter)
	_, ok := cs.Encode('N')
	assert.False(t, ok)
	_, ok = cs.Encode('a')
	assert.False(t, ok, "case-insensitive sets only hold upper case")
	_, ok = cs.Decode(4)
	assert.False(t, ok)

	cs = Lookup(DNAIUPACCaseSensitive)
	_, ok = cs.Decode(31)
	assert.False(t, ok, "31 symbols leave code 31 unused")
}
