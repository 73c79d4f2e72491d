package entity

import "errors"

// Ошибки конвейера обработки кадров.
var (
	// ErrDecode кадр повреждён или имеет нулевой размер.
	ErrDecode = errors.New("decode: invalid image")

	// ErrGeometry область обрезки или масштабирования выходит за границы кадра.
	ErrGeometry = errors.New("geometry: region outside image bounds")

	// ErrUnsupportedConversion запрошено неподдерживаемое преобразование цвета.
	ErrUnsupportedConversion = errors.New("unsupported color conversion")

	// ErrNotReady модель ещё не загружена.
	ErrNotReady = errors.New("inference engine is not ready")
)
