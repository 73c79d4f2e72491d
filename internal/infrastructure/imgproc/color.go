package imgproc

import (
	"fmt"
	"math"

	"fabric-qc/internal/domain/entity"
)

// ConvertColor переводит буфер в другое цветовое пространство.
// HSV хранится в шкале OpenCV: H в [0,180), S и V в [0,255].
func ConvertColor(b *PixelBuffer, to ColorSpace) (*PixelBuffer, error) {
	if !validSpace(b.Space) || !validSpace(to) || b.Channels != b.Space.Channels() {
		return nil, fmt.Errorf("%w: %s -> %s", entity.ErrUnsupportedConversion, b.Space, to)
	}
	if b.Space == to {
		return b.Clone(), nil
	}

	out := NewPixelBuffer(b.Width, b.Height, to)
	for i, j := 0, 0; i < len(b.Pix); i, j = i+b.Channels, j+out.Channels {
		r, g, bl := toRGB(b.Space, b.Pix[i:i+b.Channels])
		switch to {
		case SpaceRGB:
			out.Pix[j], out.Pix[j+1], out.Pix[j+2] = r, g, bl
		case SpaceBGR:
			out.Pix[j], out.Pix[j+1], out.Pix[j+2] = bl, g, r
		case SpaceHSV:
			out.Pix[j], out.Pix[j+1], out.Pix[j+2] = rgbToHSV(r, g, bl)
		case SpaceGray:
			out.Pix[j] = luma(r, g, bl)
		}
	}
	return out, nil
}

func validSpace(s ColorSpace) bool {
	return s >= SpaceRGB && s <= SpaceGray
}

func toRGB(space ColorSpace, px []uint8) (r, g, b uint8) {
	switch space {
	case SpaceBGR:
		return px[2], px[1], px[0]
	case SpaceHSV:
		return hsvToRGB(px[0], px[1], px[2])
	case SpaceGray:
		return px[0], px[0], px[0]
	default:
		return px[0], px[1], px[2]
	}
}

func luma(r, g, b uint8) uint8 {
	return uint8(math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)))
}

func rgbToHSV(r, g, b uint8) (h, s, v uint8) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	diff := maxC - minC

	var hue float64
	switch {
	case diff == 0:
		hue = 0
	case maxC == rf:
		hue = 60 * (gf - bf) / diff
	case maxC == gf:
		hue = 120 + 60*(bf-rf)/diff
	default:
		hue = 240 + 60*(rf-gf)/diff
	}
	if hue < 0 {
		hue += 360
	}

	var sat float64
	if maxC > 0 {
		sat = 255 * diff / maxC
	}

	h = uint8(math.Min(179, math.Round(hue/2)))
	return h, uint8(math.Round(sat)), uint8(maxC)
}

func hsvToRGB(h, s, v uint8) (r, g, b uint8) {
	hue := float64(h) * 2
	sat := float64(s) / 255
	val := float64(v)

	c := val * sat
	x := c * (1 - math.Abs(math.Mod(hue/60, 2)-1))
	m := val - c

	var rf, gf, bf float64
	switch {
	case hue < 60:
		rf, gf, bf = c, x, 0
	case hue < 120:
		rf, gf, bf = x, c, 0
	case hue < 180:
		rf, gf, bf = 0, c, x
	case hue < 240:
		rf, gf, bf = 0, x, c
	case hue < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}
	return toByte(rf + m), toByte(gf + m), toByte(bf + m)
}

func toByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

// InRange строит бинарную маску пикселей HSV, попавших в диапазон.
func InRange(b *PixelBuffer, r entity.ColorRange) (*PixelBuffer, error) {
	if b.Space != SpaceHSV {
		return nil, fmt.Errorf("%w: in-range expects HSV, got %s", entity.ErrUnsupportedConversion, b.Space)
	}
	mask := NewPixelBuffer(b.Width, b.Height, SpaceGray)
	for i, j := 0, 0; i < len(b.Pix); i, j = i+3, j+1 {
		if r.Contains(b.Pix[i], b.Pix[i+1], b.Pix[i+2]) {
			mask.Pix[j] = 255
		}
	}
	return mask, nil
}

// BitwiseAnd обнуляет пиксели, для которых маска равна нулю.
func BitwiseAnd(b, mask *PixelBuffer) (*PixelBuffer, error) {
	if mask.Channels != 1 || mask.Width != b.Width || mask.Height != b.Height {
		return nil, fmt.Errorf("%w: mask %dx%d does not match %dx%d",
			entity.ErrGeometry, mask.Width, mask.Height, b.Width, b.Height)
	}
	out := b.Clone()
	for j, m := range mask.Pix {
		if m != 0 {
			continue
		}
		off := j * b.Channels
		for c := 0; c < b.Channels; c++ {
			out.Pix[off+c] = 0
		}
	}
	return out, nil
}
