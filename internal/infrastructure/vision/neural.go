package vision

import (
	"context"
	"fmt"
	"image"

	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/domain/port"
	"fabric-qc/internal/infrastructure/imgproc"
)

// NeuralConfig параметры детектора на основе модели.
type NeuralConfig struct {
	Labels              []string           // имена классов по индексу
	ConfidenceThreshold float64            // минимальная уверенность кандидата
	IoUThreshold        float64            // порог NMS
	ColorOrder          imgproc.ColorSpace // порядок каналов, который ждёт модель
	// NormalizedCoords: модель выдаёт координаты в [0,1].
	// Иначе координаты в пикселях входа модели.
	NormalizedCoords bool
}

// DefaultNeuralConfig значения для экспорта YOLOv8.
func DefaultNeuralConfig() NeuralConfig {
	return NeuralConfig{
		ConfidenceThreshold: 0.5,
		IoUThreshold:        DefaultIoUThreshold,
		ColorOrder:          imgproc.SpaceRGB,
		NormalizedCoords:    true,
	}
}

// NeuralDetector стратегия поиска дефектов обученной моделью.
type NeuralDetector struct {
	engine port.InferenceEngine
	cfg    NeuralConfig
}

// NewNeuralDetector создаёт детектор поверх движка инференса.
func NewNeuralDetector(engine port.InferenceEngine, cfg NeuralConfig) *NeuralDetector {
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = DefaultIoUThreshold
	}
	return &NeuralDetector{engine: engine, cfg: cfg}
}

// Name возвращает имя стратегии.
func (d *NeuralDetector) Name() string {
	return "neural"
}

// Detect готовит тензор, запускает модель, декодирует области и применяет NMS.
func (d *NeuralDetector) Detect(ctx context.Context, frame *imgproc.PixelBuffer) (*entity.DetectionResult, error) {
	if d.engine == nil || !d.engine.Ready() {
		return nil, entity.ErrNotReady
	}
	if err := d.prepareInput(frame); err != nil {
		return nil, err
	}
	if err := d.engine.Run(ctx); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	candidates, err := d.decode(d.engine.Output(), d.engine.OutputShape(), frame.Width, frame.Height)
	if err != nil {
		return nil, err
	}
	boxes := NMS(candidates, d.cfg.IoUThreshold)

	counts := make(map[string]int, len(d.cfg.Labels))
	for _, b := range boxes {
		counts[b.Label]++
	}
	return &entity.DetectionResult{
		IsDefective:    len(boxes) > 0,
		Boxes:          boxes,
		PerClassCounts: counts,
	}, nil
}

// Highlight рисует рамки и подписи найденных областей.
func (d *NeuralDetector) Highlight(frame *imgproc.PixelBuffer, result *entity.DetectionResult) (*imgproc.PixelBuffer, error) {
	out := frame.Clone()
	if result == nil || len(result.Boxes) == 0 {
		// Без областей (в том числе на кадрах паузы) выводим только статус.
		imgproc.DrawText(out, result.Status(), bannerOrigin, imgproc.ColorRed, 2)
		return out, nil
	}
	for _, b := range result.Boxes {
		rect := b.Clamp(frame.Width, frame.Height).Rect()
		imgproc.DrawRect(out, rect, imgproc.ColorGreen, 2)

		caption := fmt.Sprintf("%s %.2f", b.Label, b.Confidence)
		y := rect.Min.Y - 4
		if y < 12 {
			y = rect.Min.Y + 14
		}
		imgproc.DrawText(out, caption, image.Pt(rect.Min.X, y), imgproc.ColorGreen, 1)
	}
	return out, nil
}

// prepareInput пишет кадр во входной тензор движка. Поддерживаются
// раскладки NHWC и NCHW: число каналов (1 или 3) определяет раскладку.
func (d *NeuralDetector) prepareInput(frame *imgproc.PixelBuffer) error {
	shape := d.engine.InputShape()
	if len(shape) != 4 || shape[0] != 1 {
		return fmt.Errorf("unexpected model input shape %v", shape)
	}
	height, width, channels := int(shape[1]), int(shape[2]), int(shape[3])
	planar := false
	if !validChannels(channels) && validChannels(int(shape[1])) {
		channels, height, width = int(shape[1]), int(shape[2]), int(shape[3])
		planar = true
	}
	if !validChannels(channels) {
		return fmt.Errorf("unsupported model input shape %v", shape)
	}

	order := d.cfg.ColorOrder
	if channels == 1 {
		order = imgproc.SpaceGray
	}
	converted, err := imgproc.ConvertColor(frame, order)
	if err != nil {
		return err
	}
	resized, err := imgproc.Resize(converted, width, height)
	if err != nil {
		return err
	}

	input := d.engine.Input()
	if len(input) != shape.Size() || len(resized.Pix) != len(input) {
		return fmt.Errorf("input tensor size mismatch: tensor %d, frame %d", len(input), len(resized.Pix))
	}
	if !planar {
		for i, v := range resized.Pix {
			input[i] = float32(v) / 255
		}
		return nil
	}
	plane := width * height
	for i := 0; i < plane; i++ {
		for c := 0; c < channels; c++ {
			input[c*plane+i] = float32(resized.Pix[i*channels+c]) / 255
		}
	}
	return nil
}

func validChannels(c int) bool {
	return c == 1 || c == 3
}

// decode разбирает выход вида [1, 4+C, N]: строки x, y, w, h и уверенности
// классов, столбцы это якоря. Области масштабируются к размеру кадра,
// на котором будут нарисованы.
func (d *NeuralDetector) decode(output []float32, shape entity.TensorShape, dstW, dstH int) ([]entity.BoundingBox, error) {
	if len(shape) == 3 {
		shape = shape[1:]
	}
	if len(shape) != 2 || shape[0] <= 4 {
		return nil, fmt.Errorf("unexpected model output shape %v", shape)
	}
	if len(output) < shape.Size() {
		return nil, fmt.Errorf("output tensor too small: %d < %d", len(output), shape.Size())
	}
	rows, anchors := int(shape[0]), int(shape[1])

	scaleX, scaleY := float64(dstW), float64(dstH)
	if !d.cfg.NormalizedCoords {
		inW, inH := inputSize(d.engine.InputShape())
		scaleX /= float64(inW)
		scaleY /= float64(inH)
	}

	var boxes []entity.BoundingBox
	for class := 0; class < rows-4; class++ {
		for a := 0; a < anchors; a++ {
			conf := float64(output[shape.Offset(4+class, a)])
			if conf <= d.cfg.ConfidenceThreshold {
				continue
			}
			xc := float64(output[shape.Offset(0, a)])
			yc := float64(output[shape.Offset(1, a)])
			w := float64(output[shape.Offset(2, a)])
			h := float64(output[shape.Offset(3, a)])

			box := entity.BoundingBox{
				XMin:       (xc - w/2) * scaleX,
				YMin:       (yc - h/2) * scaleY,
				XMax:       (xc + w/2) * scaleX,
				YMax:       (yc + h/2) * scaleY,
				ClassID:    class,
				Label:      d.label(class),
				Confidence: min(conf, 1),
			}
			boxes = append(boxes, box.Clamp(dstW, dstH))
		}
	}
	return boxes, nil
}

// inputSize возвращает ширину и высоту входа модели для обеих раскладок.
func inputSize(shape entity.TensorShape) (width, height int) {
	if !validChannels(int(shape[3])) && validChannels(int(shape[1])) {
		return int(shape[3]), int(shape[2])
	}
	return int(shape[2]), int(shape[1])
}

func (d *NeuralDetector) label(class int) string {
	if class < len(d.cfg.Labels) && d.cfg.Labels[class] != "" {
		return d.cfg.Labels[class]
	}
	return fmt.Sprintf("class_%d", class)
}

var _ port.DetectionStrategy = (*NeuralDetector)(nil)
