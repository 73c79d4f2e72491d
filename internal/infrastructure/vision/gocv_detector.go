//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/domain/port"
	"fabric-qc/internal/infrastructure/imgproc"
)

// GoCVAvailable сборка с OpenCV: классический детектор по умолчанию работает на gocv.
const GoCVAvailable = true

// GoCVDetector классический детектор на OpenCV, оба варианта алгоритма.
type GoCVDetector struct {
	cfg ClassicalConfig
}

// NewGoCVDetector создаёт детектор. Неизвестный вариант заменяется на direct.
func NewGoCVDetector(cfg ClassicalConfig) *GoCVDetector {
	if cfg.Variant != VariantSilhouette {
		cfg.Variant = VariantDirect
	}
	return &GoCVDetector{cfg: cfg}
}

// Name возвращает имя стратегии.
func (d *GoCVDetector) Name() string {
	return "classical/gocv/" + string(d.cfg.Variant)
}

// Detect ищет внутренние границы в зоне анализа средствами OpenCV.
func (d *GoCVDetector) Detect(ctx context.Context, frame *imgproc.PixelBuffer) (*entity.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rect, err := d.cfg.Crop.Rect(frame.Width, frame.Height)
	if err != nil {
		return nil, err
	}

	mat, err := toMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	roi := mat.Region(rect)
	defer roi.Close()

	var edges gocv.Mat
	switch d.cfg.Variant {
	case VariantSilhouette:
		edges = d.silhouetteEdges(roi)
	default:
		edges = d.directEdges(roi)
	}
	defer edges.Close()

	if gocv.CountNonZero(edges) == 0 {
		return &entity.DetectionResult{}, nil
	}

	found := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	contours := make([]imgproc.Contour, 0, found.Size())
	for i := 0; i < found.Size(); i++ {
		contours = append(contours, imgproc.Contour(found.At(i).ToPoints()))
	}
	return resultFromContours(contours, rect.Min), nil
}

func (d *GoCVDetector) directEdges(roi gocv.Mat) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorBGRToHSV)

	filtered := gocv.NewMat()
	defer filtered.Close()
	gocv.BilateralFilter(hsv, &filtered, d.cfg.BilateralDiameter, d.cfg.SigmaColor, d.cfg.SigmaSpace)

	edges := gocv.NewMat()
	gocv.Canny(filtered, &edges, float32(d.cfg.CannyLow), float32(d.cfg.CannyHigh))
	return edges
}

func (d *GoCVDetector) silhouetteEdges(roi gocv.Mat) gocv.Mat {
	ksize := d.blurSize()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorBGRToHSV)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(hsv, &blurred, ksize, 0, 0, gocv.BorderDefault)

	lo, hi := d.cfg.Colors.Lower, d.cfg.Colors.Upper
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(blurred,
		gocv.NewScalar(lo[0], lo[1], lo[2], 0),
		gocv.NewScalar(hi[0], hi[1], hi[2], 0),
		&mask)

	fabric := gocv.NewMat()
	defer fabric.Close()
	gocv.BitwiseAndWithMask(roi, roi, &fabric, mask)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(fabric, &gray, gocv.ColorBGRToGray)

	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for i, v := range d.cfg.SharpenKernel {
		kernel.SetFloatAt(i/3, i%3, float32(v))
	}
	sharp := gocv.NewMat()
	defer sharp.Close()
	gocv.Filter2D(gray, &sharp, gocv.MatTypeCV8U, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)

	smooth := gocv.NewMat()
	defer smooth.Close()
	gocv.GaussianBlur(sharp, &smooth, ksize, 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	gocv.Canny(smooth, &edges, float32(d.cfg.CannyLow), float32(d.cfg.CannyHigh))

	// Полотно на весь кадр: края ткани в зоне анализа нет, стирать нечего.
	if !matHasSilhouette(mask) {
		return edges
	}

	contours := gocv.FindContours(edges, gocv.RetrievalList, gocv.ChainApproxSimple)
	defer contours.Close()
	largest, largestArea := -1, -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > largestArea {
			largest, largestArea = i, area
		}
	}
	if largest < 0 {
		return edges
	}

	// Самый крупный контур это край полотна: закрашиваем его линию фоном.
	gocv.DrawContours(&edges, contours, largest, color.RGBA{}, 5)

	suppressed := gocv.NewMat()
	gocv.Canny(edges, &suppressed, float32(d.cfg.CannyLow), float32(d.cfg.CannyHigh))
	edges.Close()
	return suppressed
}

func (d *GoCVDetector) blurSize() image.Point {
	k := max(d.cfg.BlurKernel, 1)
	if k%2 == 0 {
		k++
	}
	return image.Pt(k, k)
}

// matHasSilhouette сообщает, выходит ли фон (не ткань) на границу маски.
func matHasSilhouette(mask gocv.Mat) bool {
	rows, cols := mask.Rows(), mask.Cols()
	for x := 0; x < cols; x++ {
		if mask.GetUCharAt(0, x) == 0 || mask.GetUCharAt(rows-1, x) == 0 {
			return true
		}
	}
	for y := 0; y < rows; y++ {
		if mask.GetUCharAt(y, 0) == 0 || mask.GetUCharAt(y, cols-1) == 0 {
			return true
		}
	}
	return false
}

// Highlight обводит контуры и пишет статус средствами OpenCV.
func (d *GoCVDetector) Highlight(frame *imgproc.PixelBuffer, result *entity.DetectionResult) (*imgproc.PixelBuffer, error) {
	mat, err := toMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if result != nil && len(result.Regions) > 0 {
		regions := gocv.NewPointsVectorFromPoints(result.Regions)
		defer regions.Close()
		gocv.Polylines(&mat, regions, true, color.RGBA{G: 255, A: 255}, 2)
	}
	gocv.PutText(&mat, result.Status(), bannerOrigin, gocv.FontHersheySimplex, 1, color.RGBA{R: 255, A: 255}, 2)

	return fromMat(mat, frame.Space)
}

// toMat копирует кадр в gocv.Mat в порядке BGR, как принято в OpenCV.
func toMat(frame *imgproc.PixelBuffer) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), errors.New("empty image")
	}
	bgr, err := imgproc.ConvertColor(frame, imgproc.SpaceBGR)
	if err != nil {
		return gocv.NewMat(), err
	}
	mat, err := gocv.NewMatFromBytes(bgr.Height, bgr.Width, gocv.MatTypeCV8UC3, bgr.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("build mat: %w", err)
	}
	return mat, nil
}

// fromMat переводит BGR матрицу обратно в буфер нужного пространства.
func fromMat(mat gocv.Mat, space imgproc.ColorSpace) (*imgproc.PixelBuffer, error) {
	out := imgproc.NewPixelBuffer(mat.Cols(), mat.Rows(), imgproc.SpaceBGR)
	copy(out.Pix, mat.ToBytes())
	return imgproc.ConvertColor(out, space)
}

var _ port.DetectionStrategy = (*GoCVDetector)(nil)
