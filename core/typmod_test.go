package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeModifier_EncodeDecode(t *testing.T) {
	testCases := []TypeModifier{
		{CaseSensitive: true, Alphabet: AlphabetIUPAC, Strategy: StrategyShort},
		{CaseSensitive: false, Alphabet: AlphabetFourLetter, Strategy: StrategyDefault},
		{CaseSensitive: false, Alphabet: AlphabetASCII, Strategy: StrategyReference},
		{CaseSensitive: true, Alphabet: AlphabetASCII, Strategy: StrategyReference},
	}
	for _, tm := range testCases {
		t.Run(tm.String(), func(t *testing.T) {
			assert.Equal(t, tm, DecodeTypeModifier(tm.Encode()))
		})
	}
}

func TestTypeModifier_BitLayout(t *testing.T) {
	tm := TypeModifier{CaseSensitive: true, Alphabet: AlphabetIUPAC, Strategy: StrategyShort}
	// bit 0 = 1, bits 1-2 = 01, bits 3-4 = 01
	assert.Equal(t, int32(0b01011), tm.Encode())

	tm = TypeModifier{Alphabet: AlphabetASCII, Strategy: StrategyReference}
	assert.Equal(t, int32(0b10100), tm.Encode())
}

func TestDecodeTypeModifier_Unspecified(t *testing.T) {
	assert.Equal(t, DefaultTypeModifier, DecodeTypeModifier(-1))
}

func TestTypeModifier_Check(t *testing.T) {
	require.NoError(t, TypeModifier{Alphabet: AlphabetFourLetter, Strategy: StrategyReference}.Check(KindDNA))
	require.NoError(t, TypeModifier{Alphabet: AlphabetIUPAC}.Check(KindAminoAcid))

	err := TypeModifier{Alphabet: AlphabetFourLetter}.Check(KindAminoAcid)
	require.Error(t, err)
	assert.True(t, IsUnsupportedModifier(err))

	err = TypeModifier{Alphabet: AlphabetIUPAC, Strategy: StrategyShort}.Check(KindAminoAcid)
	assert.True(t, IsUnsupportedModifier(err))

	err = TypeModifier{Alphabet: 3}.Check(KindDNA)
	assert.True(t, IsUnsupportedModifier(err))
}

func TestParseKeywords(t *testing.T) {
	a, err := ParseAlphabet("IUPAC")
	require.NoError(t, err)
	assert.Equal(t, AlphabetIUPAC, a)

	s, err := ParseStrategy("reference")
	require.NoError(t, err)
	assert.Equal(t, StrategyReference, s)

	k, err := ParseKind("protein")
	require.NoError(t, err)
	assert.Equal(t, KindAminoAcid, k)

	_, err = ParseAlphabet("klingon")
	assert.Error(t, err)
	_, err = ParseStrategy("fastest")
	assert.Error(t, err)
}

func TestErrorHelpers(t *testing.T) {
	var err error = &AlphabetViolationError{Position: 3, Symbol: 'X', Alphabet: "flc"}
	assert.True(t, IsAlphabetViolation(err))
	assert.False(t, IsRangeError(err))
	assert.Contains(t, err.Error(), "position 3")

	err = &RangeError{From: 10, Length: 5, Size: 12}
	assert.True(t, IsRangeError(err))
}
