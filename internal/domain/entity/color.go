package entity

// Допустимые диапазоны каналов HSV в шкале OpenCV.
const (
	MaxHue        = 180
	MaxSaturation = 255
	MaxValue      = 255
)

// ColorRange нижняя и верхняя граница цвета ткани в пространстве HSV
type ColorRange struct {
	Lower [3]float64
	Upper [3]float64
}

// NewColorRange создаёт диапазон, приводя границы к допустимым значениям.
// Значения вне диапазона обрезаются, перевёрнутые границы меняются местами.
func NewColorRange(lower, upper [3]float64) ColorRange {
	limits := [3]float64{MaxHue, MaxSaturation, MaxValue}
	var r ColorRange
	for i := range limits {
		lo := clamp(lower[i], 0, limits[i])
		hi := clamp(upper[i], 0, limits[i])
		if lo > hi {
			lo, hi = hi, lo
		}
		r.Lower[i] = lo
		r.Upper[i] = hi
	}
	return r
}

// DefaultFabricRange диапазон, откалиброванный под серую ткань на линии.
func DefaultFabricRange() ColorRange {
	return NewColorRange([3]float64{30, 100, 100}, [3]float64{106, 140, 171})
}

// Contains проверяет, попадает ли пиксель HSV в диапазон.
func (r ColorRange) Contains(h, s, v uint8) bool {
	px := [3]float64{float64(h), float64(s), float64(v)}
	for i := range px {
		if px[i] < r.Lower[i] || px[i] > r.Upper[i] {
			return false
		}
	}
	return true
}
