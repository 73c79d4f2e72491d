package imgproc

import (
	"math"

	"github.com/disintegration/imaging"
)

// DefaultSharpenKernel ядро повышения резкости 3x3.
var DefaultSharpenKernel = [9]float64{
	0, -1, 0,
	-1, 5, -1,
	0, -1, 0,
}

// GaussianBlur размывает кадр по Гауссу. Если sigma не задана,
// она выводится из размера ядра так же, как в OpenCV.
func GaussianBlur(b *PixelBuffer, ksize int, sigma float64) *PixelBuffer {
	if sigma <= 0 {
		if ksize <= 1 {
			return b.Clone()
		}
		sigma = 0.3*((float64(ksize)-1)*0.5-1) + 0.8
	}
	return fromNRGBA(imaging.Blur(toNRGBA(b), sigma), b.Space)
}

// Sharpen применяет ядро свёртки 3x3.
func Sharpen(b *PixelBuffer, kernel [9]float64) *PixelBuffer {
	return fromNRGBA(imaging.Convolve3x3(toNRGBA(b), kernel, nil), b.Space)
}

// BilateralFilter сглаживает шум, сохраняя резкие границы.
// Расстояние по цвету считается как сумма модулей разностей каналов.
func BilateralFilter(b *PixelBuffer, diameter int, sigmaColor, sigmaSpace float64) *PixelBuffer {
	if sigmaColor <= 0 {
		sigmaColor = 1
	}
	if sigmaSpace <= 0 {
		sigmaSpace = 1
	}
	radius := diameter / 2
	if diameter <= 0 {
		radius = int(math.Round(sigmaSpace * 1.5))
	}
	if radius < 1 {
		return b.Clone()
	}

	type tap struct {
		dx, dy int
		w      float64
	}
	var taps []tap
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			if d2 > float64(radius*radius) {
				continue
			}
			taps = append(taps, tap{dx, dy, math.Exp(-d2 / (2 * sigmaSpace * sigmaSpace))})
		}
	}

	maxDiff := 256 * b.Channels
	colorWeight := make([]float64, maxDiff)
	for i := range colorWeight {
		colorWeight[i] = math.Exp(-float64(i*i) / (2 * sigmaColor * sigmaColor))
	}

	out := NewPixelBuffer(b.Width, b.Height, b.Space)
	sum := make([]float64, b.Channels)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			center := b.Offset(x, y)
			for c := range sum {
				sum[c] = 0
			}
			var norm float64
			for _, t := range taps {
				nx, ny := x+t.dx, y+t.dy
				if nx < 0 || ny < 0 || nx >= b.Width || ny >= b.Height {
					continue
				}
				off := b.Offset(nx, ny)
				diff := 0
				for c := 0; c < b.Channels; c++ {
					diff += absInt(int(b.Pix[off+c]) - int(b.Pix[center+c]))
				}
				w := t.w * colorWeight[diff]
				for c := 0; c < b.Channels; c++ {
					sum[c] += w * float64(b.Pix[off+c])
				}
				norm += w
			}
			for c := 0; c < b.Channels; c++ {
				out.Pix[center+c] = toByte(sum[c] / norm)
			}
		}
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
