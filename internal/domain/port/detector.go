package port

import (
	"context"

	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/infrastructure/imgproc"
)

// DetectionStrategy интерфейс стратегии поиска дефектов на кадре
type DetectionStrategy interface {
	// Name возвращает имя стратегии для логов
	Name() string

	// Detect анализирует кадр и возвращает результат. Буфер не изменяется.
	Detect(ctx context.Context, frame *imgproc.PixelBuffer) (*entity.DetectionResult, error)

	// Highlight рисует результат поверх кадра и возвращает новый буфер
	Highlight(frame *imgproc.PixelBuffer, result *entity.DetectionResult) (*imgproc.PixelBuffer, error)
}
