package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewColorRange_ClampsOutOfRange(t *testing.T) {
	r := NewColorRange([3]float64{-10, -5, 300}, [3]float64{200, 400, 500})
	require.Equal(t, [3]float64{0, 0, 255}, r.Lower)
	require.Equal(t, [3]float64{180, 255, 255}, r.Upper)
}

func TestNewColorRange_SwapsInverted(t *testing.T) {
	r := NewColorRange([3]float64{100, 200, 50}, [3]float64{20, 10, 60})
	for i := 0; i < 3; i++ {
		require.LessOrEqual(t, r.Lower[i], r.Upper[i])
	}
	require.Equal(t, [3]float64{20, 10, 50}, r.Lower)
	require.Equal(t, [3]float64{100, 200, 60}, r.Upper)
}

func TestColorRangeContains(t *testing.T) {
	r := DefaultFabricRange()
	require.True(t, r.Contains(60, 120, 150))
	require.False(t, r.Contains(0, 0, 0))
	require.False(t, r.Contains(60, 120, 200))
}
