package imgproc

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Цвета аннотаций в порядке RGB.
var (
	ColorRed   = [3]uint8{255, 0, 0}
	ColorGreen = [3]uint8{0, 255, 0}
	ColorWhite = [3]uint8{255, 255, 255}
)

// paint ставит квадратную кисть толщиной thickness с центром в точке.
func (b *PixelBuffer) paint(x, y, thickness int, rgb [3]uint8) {
	values := b.colorValues(rgb)
	r := thickness / 2
	for dy := -r; dy <= thickness-1-r; dy++ {
		for dx := -r; dx <= thickness-1-r; dx++ {
			b.setPixel(x+dx, y+dy, values)
		}
	}
}

// colorValues переводит RGB цвет в порядок каналов буфера.
func (b *PixelBuffer) colorValues(rgb [3]uint8) []uint8 {
	switch b.Space {
	case SpaceBGR:
		return []uint8{rgb[2], rgb[1], rgb[0]}
	case SpaceGray:
		return []uint8{luma(rgb[0], rgb[1], rgb[2])}
	case SpaceHSV:
		h, s, v := rgbToHSV(rgb[0], rgb[1], rgb[2])
		return []uint8{h, s, v}
	default:
		return rgb[:]
	}
}

// DrawLine рисует отрезок алгоритмом Брезенхэма.
func DrawLine(b *PixelBuffer, p0, p1 image.Point, rgb [3]uint8, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	dx, dy := absInt(p1.X-p0.X), -absInt(p1.Y-p0.Y)
	sx, sy := 1, 1
	if p0.X > p1.X {
		sx = -1
	}
	if p0.Y > p1.Y {
		sy = -1
	}
	errAcc := dx + dy
	x, y := p0.X, p0.Y
	for {
		b.paint(x, y, thickness, rgb)
		if x == p1.X && y == p1.Y {
			return
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x += sx
		}
		if e2 <= dx {
			errAcc += dx
			y += sy
		}
	}
}

// DrawPolyline рисует ломаную; closed замыкает её на первую точку.
func DrawPolyline(b *PixelBuffer, points []image.Point, closed bool, rgb [3]uint8, thickness int) {
	switch len(points) {
	case 0:
		return
	case 1:
		b.paint(points[0].X, points[0].Y, thickness, rgb)
		return
	}
	for i := 1; i < len(points); i++ {
		DrawLine(b, points[i-1], points[i], rgb, thickness)
	}
	if closed {
		DrawLine(b, points[len(points)-1], points[0], rgb, thickness)
	}
}

// DrawRect рисует рамку прямоугольника (Max не включительно).
func DrawRect(b *PixelBuffer, r image.Rectangle, rgb [3]uint8, thickness int) {
	if r.Empty() {
		return
	}
	last := r.Max.Sub(image.Pt(1, 1))
	DrawPolyline(b, []image.Point{
		r.Min, {last.X, r.Min.Y}, last, {r.Min.X, last.Y},
	}, true, rgb, thickness)
}

// DrawText пишет строку растровым шрифтом 7x13, увеличенным в scale раз.
// origin задаёт левую точку базовой линии, как в cv::putText.
func DrawText(b *PixelBuffer, text string, origin image.Point, rgb [3]uint8, scale int) {
	if scale < 1 {
		scale = 1
	}
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	if width == 0 {
		return
	}

	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(text)

	values := b.colorValues(rgb)
	top := origin.Y - ascent*scale
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask.AlphaAt(x, y).A < 128 {
				continue
			}
			for sy := 0; sy < scale; sy++ {
				for sx := 0; sx < scale; sx++ {
					b.setPixel(origin.X+x*scale+sx, top+y*scale+sy, values)
				}
			}
		}
	}
}
