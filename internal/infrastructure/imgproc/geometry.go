package imgproc

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"fabric-qc/internal/domain/entity"
)

// Crop вырезает прямоугольник. Прямоугольник должен целиком лежать внутри кадра.
func Crop(b *PixelBuffer, rect image.Rectangle) (*PixelBuffer, error) {
	if rect.Empty() || !rect.In(b.Bounds()) {
		return nil, fmt.Errorf("%w: crop %v from %dx%d", entity.ErrGeometry, rect, b.Width, b.Height)
	}
	if rect == b.Bounds() {
		return b.Clone(), nil
	}
	return fromNRGBA(imaging.Crop(toNRGBA(b), rect), b.Space), nil
}

// Resize масштабирует кадр до точного размера.
func Resize(b *PixelBuffer, width, height int) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: resize to %dx%d", entity.ErrGeometry, width, height)
	}
	if width == b.Width && height == b.Height {
		return b.Clone(), nil
	}
	return fromNRGBA(imaging.Resize(toNRGBA(b), width, height, imaging.Linear), b.Space), nil
}

// Margins отступы от краёв кадра.
type Margins struct {
	Top, Bottom, Left, Right int
}

// Rect возвращает внутреннюю область кадра после отступов.
func (m Margins) Rect(width, height int) (image.Rectangle, error) {
	if m.Top < 0 || m.Bottom < 0 || m.Left < 0 || m.Right < 0 ||
		m.Left+m.Right >= width || m.Top+m.Bottom >= height {
		return image.Rectangle{}, fmt.Errorf("%w: margins %+v do not fit %dx%d", entity.ErrGeometry, m, width, height)
	}
	return image.Rect(m.Left, m.Top, width-m.Right, height-m.Bottom), nil
}
