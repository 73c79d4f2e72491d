package imgproc

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"fabric-qc/internal/domain/entity"
)

// DefaultQuality качество JPEG для аннотированных кадров.
const DefaultQuality = 100

// Decode декодирует сжатый кадр в RGB буфер.
func Decode(data []byte) (*PixelBuffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", entity.ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: zero dimensions", entity.ErrDecode)
	}

	// PNG с альфа-каналом декодируется сразу в NRGBA.
	if nrgba, ok := img.(*image.NRGBA); ok {
		return fromNRGBA(nrgba, SpaceRGB), nil
	}
	return fromImage(img), nil
}

// Encode кодирует буфер в JPEG. Результат детерминирован для буфера и качества.
func Encode(b *PixelBuffer, quality int) ([]byte, error) {
	return encode(b, imaging.JPEG, imaging.JPEGQuality(clampQuality(quality)))
}

// EncodePNG кодирует буфер без потерь.
func EncodePNG(b *PixelBuffer) ([]byte, error) {
	return encode(b, imaging.PNG)
}

func encode(b *PixelBuffer, format imaging.Format, opts ...imaging.EncodeOption) ([]byte, error) {
	if b.Empty() {
		return nil, fmt.Errorf("%w: nothing to encode", entity.ErrGeometry)
	}
	img, err := ToImage(b)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
