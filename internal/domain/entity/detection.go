package entity

import (
	"image"
	"math"
)

// Статусы кадра, которые выводятся на баннер и в события.
const (
	StatusDefective = "Defective"
	StatusPassed    = "QC Passed"
)

// BoundingBox прямоугольная область дефекта в пикселях кадра
type BoundingBox struct {
	XMin       float64 // левая граница
	YMin       float64 // верхняя граница
	XMax       float64 // правая граница
	YMax       float64 // нижняя граница
	ClassID    int     // индекс класса модели (0 для классического детектора)
	Label      string  // человекочитаемое имя класса
	Confidence float64 // уверенность в диапазоне [0,1]
}

// Width возвращает ширину области
func (b BoundingBox) Width() float64 {
	return math.Max(0, b.XMax-b.XMin)
}

// Height возвращает высоту области
func (b BoundingBox) Height() float64 {
	return math.Max(0, b.YMax-b.YMin)
}

// Area возвращает площадь области
func (b BoundingBox) Area() float64 {
	return b.Width() * b.Height()
}

// Center возвращает координаты центра области
func (b BoundingBox) Center() (x, y float64) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

// Clamp ограничивает координаты размерами изображения.
func (b BoundingBox) Clamp(width, height int) BoundingBox {
	w, h := float64(width), float64(height)
	b.XMin = clamp(b.XMin, 0, w)
	b.XMax = clamp(b.XMax, 0, w)
	b.YMin = clamp(b.YMin, 0, h)
	b.YMax = clamp(b.YMax, 0, h)
	return b
}

// Rect переводит область в целочисленный прямоугольник для отрисовки.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(b.XMin)),
		int(math.Floor(b.YMin)),
		int(math.Ceil(b.XMax)),
		int(math.Ceil(b.YMax)),
	)
}

// IoU считает отношение пересечения к объединению двух областей.
// Для вырожденных областей (нулевое объединение) возвращает 0.
func IoU(a, b BoundingBox) float64 {
	ix := math.Min(a.XMax, b.XMax) - math.Max(a.XMin, b.XMin)
	iy := math.Min(a.YMax, b.YMax) - math.Max(a.YMin, b.YMin)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// DetectionResult итог анализа одного кадра. После возврата из детектора не изменяется.
type DetectionResult struct {
	IsDefective    bool            // флаг наличия дефекта
	Boxes          []BoundingBox   // найденные области, порядок сохраняется
	PerClassCounts map[string]int  // количество областей по классам (только нейросеть)
	Regions        [][]image.Point // контуры для наложения (только классический детектор)
}

// Status возвращает текст баннера для результата.
func (r *DetectionResult) Status() string {
	if r != nil && r.IsDefective {
		return StatusDefective
	}
	return StatusPassed
}

// StatusOnly возвращает копию результата без областей и контуров:
// используется для кадров, пропущенных во время паузы.
func (r *DetectionResult) StatusOnly() *DetectionResult {
	if r == nil {
		return &DetectionResult{}
	}
	return &DetectionResult{IsDefective: r.IsDefective}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
