package vision

import (
	"context"
	"errors"
	"fmt"
	"image"

	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/domain/port"
	"fabric-qc/internal/infrastructure/imgproc"
)

// ErrGoCVDisabled бинарник собран без тега gocv.
var ErrGoCVDisabled = errors.New("gocv build tag is not enabled")

// Variant вариант классического алгоритма
type Variant string

const (
	// VariantDirect билатеральный фильтр по HSV и Canny без маски ткани.
	VariantDirect Variant = "direct"
	// VariantSilhouette маска цвета ткани и подавление внешнего контура полотна.
	VariantSilhouette Variant = "silhouette"
)

// ClassicalConfig параметры классического детектора.
type ClassicalConfig struct {
	Variant           Variant
	Crop              imgproc.Margins   // отступы зоны анализа от краёв кадра
	Colors            entity.ColorRange // цвет ткани в HSV (только silhouette)
	BilateralDiameter int
	SigmaColor        float64
	SigmaSpace        float64
	BlurKernel        int
	SharpenKernel     [9]float64
	CannyLow          float64
	CannyHigh         float64
}

// DefaultClassicalConfig значения, подобранные на линии.
func DefaultClassicalConfig() ClassicalConfig {
	return ClassicalConfig{
		Variant:           VariantDirect,
		Crop:              imgproc.Margins{Top: 100},
		Colors:            entity.DefaultFabricRange(),
		BilateralDiameter: 4,
		SigmaColor:        15,
		SigmaSpace:        15,
		BlurKernel:        5,
		SharpenKernel:     imgproc.DefaultSharpenKernel,
		CannyLow:          100,
		CannyHigh:         150,
	}
}

// ClassicalDetector ищет дефекты по внутренним границам на полотне, без модели.
// Реализация на чистом Go для сборок без OpenCV, с тегом gocv используется GoCVDetector.
type ClassicalDetector struct {
	cfg ClassicalConfig
}

// NewClassicalDetector создаёт детектор. Неизвестный вариант заменяется на direct.
func NewClassicalDetector(cfg ClassicalConfig) *ClassicalDetector {
	if cfg.Variant != VariantSilhouette {
		cfg.Variant = VariantDirect
	}
	return &ClassicalDetector{cfg: cfg}
}

// Name возвращает имя стратегии.
func (d *ClassicalDetector) Name() string {
	return "classical/" + string(d.cfg.Variant)
}

// Detect вырезает зону анализа, строит карту внутренних границ и
// превращает её внешние контуры в области дефектов.
func (d *ClassicalDetector) Detect(ctx context.Context, frame *imgproc.PixelBuffer) (*entity.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	roi, origin, err := cropROI(frame, d.cfg.Crop)
	if err != nil {
		return nil, err
	}

	var edges *imgproc.PixelBuffer
	switch d.cfg.Variant {
	case VariantSilhouette:
		edges, err = d.silhouetteEdges(roi)
	default:
		edges, err = d.directEdges(roi)
	}
	if err != nil {
		return nil, err
	}

	if imgproc.CountNonZero(edges) == 0 {
		return &entity.DetectionResult{}, nil
	}
	return resultFromContours(imgproc.FindContours(edges, imgproc.RetrievalExternal), origin), nil
}

// Highlight обводит контуры и пишет статус кадра.
func (d *ClassicalDetector) Highlight(frame *imgproc.PixelBuffer, result *entity.DetectionResult) (*imgproc.PixelBuffer, error) {
	return annotateClassical(frame, result), nil
}

func (d *ClassicalDetector) directEdges(roi *imgproc.PixelBuffer) (*imgproc.PixelBuffer, error) {
	hsv, err := imgproc.ConvertColor(roi, imgproc.SpaceHSV)
	if err != nil {
		return nil, err
	}
	filtered := imgproc.BilateralFilter(hsv, d.cfg.BilateralDiameter, d.cfg.SigmaColor, d.cfg.SigmaSpace)
	return imgproc.Canny(filtered, d.cfg.CannyLow, d.cfg.CannyHigh), nil
}

func (d *ClassicalDetector) silhouetteEdges(roi *imgproc.PixelBuffer) (*imgproc.PixelBuffer, error) {
	hsv, err := imgproc.ConvertColor(roi, imgproc.SpaceHSV)
	if err != nil {
		return nil, err
	}
	mask, err := imgproc.InRange(imgproc.GaussianBlur(hsv, d.cfg.BlurKernel, 0), d.cfg.Colors)
	if err != nil {
		return nil, err
	}
	fabric, err := imgproc.BitwiseAnd(roi, mask)
	if err != nil {
		return nil, err
	}
	gray, err := imgproc.ConvertColor(fabric, imgproc.SpaceGray)
	if err != nil {
		return nil, err
	}
	smooth := imgproc.GaussianBlur(imgproc.Sharpen(gray, d.cfg.SharpenKernel), d.cfg.BlurKernel, 0)
	edges := imgproc.Canny(smooth, d.cfg.CannyLow, d.cfg.CannyHigh)

	// Полотно на весь кадр: края ткани в зоне анализа нет, стирать нечего.
	if !hasSilhouette(mask) {
		return edges, nil
	}
	contours := imgproc.FindContours(edges, imgproc.RetrievalList)
	largest := imgproc.Largest(contours)
	if largest < 0 {
		return edges, nil
	}

	// Самый крупный контур это край полотна: стираем его целиком,
	// чтобы остались только внутренние структуры.
	silhouette := imgproc.ComponentMask(edges, contours[largest][0])
	suppressed := edges.Clone()
	for i, v := range silhouette.Pix {
		if v != 0 {
			suppressed.Pix[i] = 0
		}
	}
	return imgproc.Canny(suppressed, d.cfg.CannyLow, d.cfg.CannyHigh), nil
}

// hasSilhouette сообщает, выходит ли фон (не ткань) на границу зоны анализа.
func hasSilhouette(mask *imgproc.PixelBuffer) bool {
	w, h := mask.Width, mask.Height
	for x := 0; x < w; x++ {
		if mask.At(x, 0, 0) == 0 || mask.At(x, h-1, 0) == 0 {
			return true
		}
	}
	for y := 0; y < h; y++ {
		if mask.At(0, y, 0) == 0 || mask.At(w-1, y, 0) == 0 {
			return true
		}
	}
	return false
}

func cropROI(frame *imgproc.PixelBuffer, margins imgproc.Margins) (*imgproc.PixelBuffer, image.Point, error) {
	rect, err := margins.Rect(frame.Width, frame.Height)
	if err != nil {
		return nil, image.Point{}, err
	}
	roi, err := imgproc.Crop(frame, rect)
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("crop analysis region: %w", err)
	}
	return roi, rect.Min, nil
}

// resultFromContours переводит контуры зоны анализа в координаты кадра.
func resultFromContours(contours []imgproc.Contour, origin image.Point) *entity.DetectionResult {
	result := &entity.DetectionResult{
		IsDefective: true,
		Boxes:       make([]entity.BoundingBox, 0, len(contours)),
		Regions:     make([][]image.Point, 0, len(contours)),
	}
	for _, c := range contours {
		region := make([]image.Point, len(c))
		for i, p := range c {
			region[i] = p.Add(origin)
		}
		rect := c.BoundingRect().Add(origin)
		result.Regions = append(result.Regions, region)
		result.Boxes = append(result.Boxes, entity.BoundingBox{
			XMin:       float64(rect.Min.X),
			YMin:       float64(rect.Min.Y),
			XMax:       float64(rect.Max.X),
			YMax:       float64(rect.Max.Y),
			Label:      "defect",
			Confidence: 1,
		})
	}
	return result
}

// bannerOrigin положение статуса на кадре, как в мобильном клиенте.
var bannerOrigin = image.Pt(30, 40)

func annotateClassical(frame *imgproc.PixelBuffer, result *entity.DetectionResult) *imgproc.PixelBuffer {
	out := frame.Clone()
	if result != nil {
		for _, region := range result.Regions {
			imgproc.DrawPolyline(out, region, true, imgproc.ColorGreen, 2)
		}
	}
	imgproc.DrawText(out, result.Status(), bannerOrigin, imgproc.ColorRed, 2)
	return out
}

var _ port.DetectionStrategy = (*ClassicalDetector)(nil)
