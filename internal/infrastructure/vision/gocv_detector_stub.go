//go:build !gocv
// +build !gocv

package vision

import (
	"context"

	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/domain/port"
	"fabric-qc/internal/infrastructure/imgproc"
)

// GoCVAvailable сборка без OpenCV: классический детектор работает на чистом Go.
const GoCVAvailable = false

// GoCVDetector заглушка для сборки без OpenCV.
type GoCVDetector struct {
	cfg ClassicalConfig
}

// NewGoCVDetector создаёт детектор-заглушку (без OpenCV).
func NewGoCVDetector(cfg ClassicalConfig) *GoCVDetector {
	return &GoCVDetector{cfg: cfg}
}

// Name возвращает имя стратегии.
func (d *GoCVDetector) Name() string {
	return "classical/gocv/" + string(d.cfg.Variant)
}

// Detect возвращает ошибку, если сборка без тега gocv.
func (d *GoCVDetector) Detect(ctx context.Context, frame *imgproc.PixelBuffer) (*entity.DetectionResult, error) {
	return nil, ErrGoCVDisabled
}

// Highlight возвращает ошибку, если сборка без тега gocv.
func (d *GoCVDetector) Highlight(frame *imgproc.PixelBuffer, result *entity.DetectionResult) (*imgproc.PixelBuffer, error) {
	return nil, ErrGoCVDisabled
}

var _ port.DetectionStrategy = (*GoCVDetector)(nil)
