// Package imgproc содержит чистые преобразования кадров: декодирование,
// цветовые пространства, геометрию, фильтры, границы и контуры.
// Ни одна функция не изменяет входной буфер.
package imgproc

import (
	"fmt"
	"image"
	"image/color"
)

// ColorSpace порядок и смысл каналов буфера
type ColorSpace int

const (
	SpaceRGB ColorSpace = iota
	SpaceBGR
	SpaceHSV
	SpaceGray
)

func (s ColorSpace) String() string {
	switch s {
	case SpaceRGB:
		return "RGB"
	case SpaceBGR:
		return "BGR"
	case SpaceHSV:
		return "HSV"
	case SpaceGray:
		return "Gray"
	default:
		return fmt.Sprintf("ColorSpace(%d)", int(s))
	}
}

// Channels возвращает число каналов пространства.
func (s ColorSpace) Channels() int {
	if s == SpaceGray {
		return 1
	}
	return 3
}

// PixelBuffer декодированный кадр: каналы чередуются, строки идут подряд.
type PixelBuffer struct {
	Width    int
	Height   int
	Channels int
	Space    ColorSpace
	Pix      []uint8
}

// NewPixelBuffer создаёт заполненный нулями буфер.
func NewPixelBuffer(width, height int, space ColorSpace) *PixelBuffer {
	ch := space.Channels()
	return &PixelBuffer{
		Width:    width,
		Height:   height,
		Channels: ch,
		Space:    space,
		Pix:      make([]uint8, width*height*ch),
	}
}

// Clone возвращает глубокую копию буфера.
func (b *PixelBuffer) Clone() *PixelBuffer {
	cp := *b
	cp.Pix = make([]uint8, len(b.Pix))
	copy(cp.Pix, b.Pix)
	return &cp
}

// Bounds возвращает прямоугольник кадра.
func (b *PixelBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// Empty сообщает, что в буфере нет пикселей.
func (b *PixelBuffer) Empty() bool {
	return b == nil || b.Width <= 0 || b.Height <= 0
}

// Offset возвращает индекс первого канала пикселя (x, y).
func (b *PixelBuffer) Offset(x, y int) int {
	return (y*b.Width + x) * b.Channels
}

// At возвращает значение канала c пикселя (x, y).
func (b *PixelBuffer) At(x, y, c int) uint8 {
	return b.Pix[b.Offset(x, y)+c]
}

// Fill заливает весь буфер одним значением по каналам.
func (b *PixelBuffer) Fill(values ...uint8) {
	for i := 0; i < len(b.Pix); i += b.Channels {
		for c := 0; c < b.Channels && c < len(values); c++ {
			b.Pix[i+c] = values[c]
		}
	}
}

// FillRect заливает прямоугольник, обрезанный по границам кадра.
func (b *PixelBuffer) FillRect(r image.Rectangle, values ...uint8) {
	r = r.Intersect(b.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			b.setPixel(x, y, values)
		}
	}
}

func (b *PixelBuffer) setPixel(x, y int, values []uint8) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	off := b.Offset(x, y)
	for c := 0; c < b.Channels && c < len(values); c++ {
		b.Pix[off+c] = values[c]
	}
}

// toNRGBA упаковывает каналы буфера в image.NRGBA без интерпретации цвета:
// первые три канала идут в R, G, B, серый канал дублируется.
func toNRGBA(b *PixelBuffer) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for i, j := 0, 0; i < len(b.Pix); i, j = i+b.Channels, j+4 {
		if b.Channels == 1 {
			img.Pix[j], img.Pix[j+1], img.Pix[j+2] = b.Pix[i], b.Pix[i], b.Pix[i]
		} else {
			img.Pix[j], img.Pix[j+1], img.Pix[j+2] = b.Pix[i], b.Pix[i+1], b.Pix[i+2]
		}
		img.Pix[j+3] = 0xff
	}
	return img
}

// fromNRGBA обратная операция к toNRGBA с заданным пространством.
func fromNRGBA(img *image.NRGBA, space ColorSpace) *PixelBuffer {
	r := img.Bounds()
	out := NewPixelBuffer(r.Dx(), r.Dy(), space)
	for y := 0; y < out.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < out.Width; x++ {
			src := row[x*4:]
			dst := out.Offset(x, y)
			if out.Channels == 1 {
				out.Pix[dst] = src[0]
				continue
			}
			out.Pix[dst], out.Pix[dst+1], out.Pix[dst+2] = src[0], src[1], src[2]
		}
	}
	return out
}

// fromImage переводит произвольное image.Image в RGB буфер.
func fromImage(img image.Image) *PixelBuffer {
	r := img.Bounds()
	out := NewPixelBuffer(r.Dx(), r.Dy(), SpaceRGB)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(r.Min.X+x, r.Min.Y+y)).(color.NRGBA)
			off := out.Offset(x, y)
			out.Pix[off], out.Pix[off+1], out.Pix[off+2] = c.R, c.G, c.B
		}
	}
	return out
}

// ToImage возвращает кадр как image.Image в цветах RGB.
func ToImage(b *PixelBuffer) (*image.NRGBA, error) {
	rgb, err := ConvertColor(b, SpaceRGB)
	if err != nil {
		return nil, err
	}
	return toNRGBA(rgb), nil
}
