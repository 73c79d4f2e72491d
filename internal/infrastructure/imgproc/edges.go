package imgproc

import "math"

var (
	tan22 = math.Tan(22.5 * math.Pi / 180)
	tan67 = math.Tan(67.5 * math.Pi / 180)
)

// Canny выделяет границы: Собель 3x3, подавление немаксимумов и гистерезис.
// Для многоканального кадра берётся канал с наибольшим градиентом.
// Результат: серый буфер со значениями 0 и 255.
func Canny(b *PixelBuffer, low, high float64) *PixelBuffer {
	if low > high {
		low, high = high, low
	}
	w, h := b.Width, b.Height
	n := w * h
	gx := make([]float64, n)
	gy := make([]float64, n)
	mag := make([]float64, n)

	at := func(x, y, c int) float64 {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, h-1)
		return float64(b.Pix[b.Offset(x, y)+c])
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			for c := 0; c < b.Channels; c++ {
				dx := at(x+1, y-1, c) + 2*at(x+1, y, c) + at(x+1, y+1, c) -
					at(x-1, y-1, c) - 2*at(x-1, y, c) - at(x-1, y+1, c)
				dy := at(x-1, y+1, c) + 2*at(x, y+1, c) + at(x+1, y+1, c) -
					at(x-1, y-1, c) - 2*at(x, y-1, c) - at(x+1, y-1, c)
				m := math.Abs(dx) + math.Abs(dy)
				if c == 0 || m > mag[i] {
					gx[i], gy[i], mag[i] = dx, dy, m
				}
			}
		}
	}

	magAt := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	const (
		none = iota
		weak
		strong
	)
	class := make([]uint8, n)
	stack := make([]int, 0, 64)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			ax, ay := math.Abs(gx[i]), math.Abs(gy[i])
			var n1, n2 float64
			switch {
			case ay <= ax*tan22:
				n1, n2 = magAt(x-1, y), magAt(x+1, y)
			case ay >= ax*tan67:
				n1, n2 = magAt(x, y-1), magAt(x, y+1)
			case (gx[i] > 0) == (gy[i] > 0):
				n1, n2 = magAt(x-1, y-1), magAt(x+1, y+1)
			default:
				n1, n2 = magAt(x+1, y-1), magAt(x-1, y+1)
			}
			if m <= n1 || m < n2 {
				continue
			}
			if m > high {
				class[i] = strong
				stack = append(stack, i)
			} else {
				class[i] = weak
			}
		}
	}

	out := NewPixelBuffer(w, h, SpaceGray)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out.Pix[i] != 0 {
			continue
		}
		out.Pix[i] = 255
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if class[j] != none && out.Pix[j] == 0 {
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}

// CountNonZero считает пиксели, у которых хотя бы один канал не равен нулю.
func CountNonZero(b *PixelBuffer) int {
	count := 0
	for i := 0; i < len(b.Pix); i += b.Channels {
		for c := 0; c < b.Channels; c++ {
			if b.Pix[i+c] != 0 {
				count++
				break
			}
		}
	}
	return count
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
