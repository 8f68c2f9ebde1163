package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQualifyingFactorsFiveOrdinals(t *testing.T) {
	raw := "1. Rapid adoption of solar power 2. Falling battery costs 3. Policy momentum 4. Social contagion effects 5. Investor divestment"
	factors := ParseQualifyingFactors(raw)

	require.Len(t, factors, 5)
	assert.Equal(t, "Rapid adoption of solar power", factors[0])
	assert.Equal(t, "Falling battery costs", factors[1])
	assert.Equal(t, "Policy momentum", factors[2])
	assert.Equal(t, "Social contagion effects", factors[3])
	assert.Equal(t, "Investor divestment", factors[4])
}

func TestParseQualifyingFactorsMarkerVariants(t *testing.T) {
	t.Run("parenthesis markers", func(t *testing.T) {
		factors := ParseQualifyingFactors("1) first factor 2) second factor 3) third factor")
		require.Len(t, factors, 3)
		assert.Equal(t, "first factor", factors[0])
		assert.Equal(t, "third factor", factors[2])
	})

	t.Run("cjk enumeration comma", func(t *testing.T) {
		factors := ParseQualifyingFactors("1、光伏普及 2、电池降价")
		require.Len(t, factors, 2)
		assert.Equal(t, "光伏普及", factors[0])
	})
}

func TestParseQualifyingFactorsNoMarkers(t *testing.T) {
	// 无序号时整段作为单一因子
	factors := ParseQualifyingFactors("a single unstructured factor description")
	require.Len(t, factors, 1)
	assert.Equal(t, "a single unstructured factor description", factors[0])
}

func TestParseQualifyingFactorsDropsShortSegments(t *testing.T) {
	factors := ParseQualifyingFactors("1. ok factor one 2. ab 3. another real factor")
	require.Len(t, factors, 2)
	assert.Equal(t, "ok factor one", factors[0])
	assert.Equal(t, "another real factor", factors[1])
}

func TestParseQualifyingFactorsEmpty(t *testing.T) {
	assert.Nil(t, ParseQualifyingFactors(""))
	assert.Nil(t, ParseQualifyingFactors("   "))
	assert.Nil(t, ParseQualifyingFactors("ab"))
}

func TestParseQualifyingFactorsTrimsWhitespace(t *testing.T) {
	factors := ParseQualifyingFactors("  1.   padded factor   2. second one  ")
	require.Len(t, factors, 2)
	assert.Equal(t, "padded factor", factors[0])
	assert.Equal(t, "second one", factors[1])
}
