package container

import (
	"fmt"
	"log"

	"fabric-qc/config"
	app "fabric-qc/internal/application"
	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/domain/port"
	"fabric-qc/internal/infrastructure/events"
	"fabric-qc/internal/infrastructure/imgproc"
	"fabric-qc/internal/infrastructure/inference"
	"fabric-qc/internal/infrastructure/storage"
	"fabric-qc/internal/infrastructure/vision"
	"fabric-qc/internal/timeutil"
)

type Container struct {
	SubscriberService *app.SubscriberService
	Pipeline          *app.Pipeline
	Worker            *app.FrameWorker
	Sink              *events.ChannelSink
	Hub               *events.Hub
	Strategy          port.DetectionStrategy

	engine *inference.ONNXEngine
}

func New(cfg *config.Config, clock timeutil.Clock) (*Container, error) {
	strategy, engine, err := NewStrategy(cfg)
	if err != nil {
		return nil, err
	}

	sink := events.NewChannelSink(cfg.EventBuffer)
	pipeline := app.NewPipeline(strategy, sink, clock, app.PipelineConfig{
		Pacing: entity.PacingConfig{
			CooldownAfterPass:   cfg.CooldownPass,
			CooldownAfterDefect: cfg.CooldownDefect,
			MinInterEventGap:    cfg.MinEventGap,
			FrameSkipStride:     cfg.FrameSkip,
		},
		Quality:          cfg.JPEGQuality,
		DetectionEnabled: cfg.DetectionEnabled,
	})

	return &Container{
		SubscriberService: app.NewSubscriberService(storage.NewMemorySubscriberRepository()),
		Pipeline:          pipeline,
		Worker:            app.NewFrameWorker(pipeline, cfg.FrameQueue),
		Sink:              sink,
		Hub:               events.NewHub(),
		Strategy:          strategy,
		engine:            engine,
	}, nil
}

// NewStrategy выбирает стратегию детекции по конфигурации.
// Классический детектор в режиме auto работает на OpenCV, если сборка с тегом gocv.
// Для нейросети возвращает и движок, который нужно освободить.
func NewStrategy(cfg *config.Config) (port.DetectionStrategy, *inference.ONNXEngine, error) {
	switch cfg.Detector {
	case "neural":
		engine, err := inference.NewONNXEngine(cfg.ModelPath, cfg.ORTLibPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load model: %w", err)
		}
		log.Printf("Loaded model %s: input %v, output %v", cfg.ModelPath, engine.InputShape(), engine.OutputShape())

		ncfg := vision.DefaultNeuralConfig()
		ncfg.Labels = cfg.ModelLabels
		ncfg.ConfidenceThreshold = cfg.ConfidenceThreshold
		ncfg.IoUThreshold = cfg.NMSThreshold
		if cfg.ModelColorOrder == "bgr" {
			ncfg.ColorOrder = imgproc.SpaceBGR
		}
		return vision.NewNeuralDetector(engine, ncfg), engine, nil

	default:
		ccfg := ClassicalConfig(cfg)
		backend := cfg.ClassicalBackend
		if backend == "auto" {
			backend = "go"
			if vision.GoCVAvailable {
				backend = "gocv"
			}
		}
		if backend != "gocv" {
			return vision.NewClassicalDetector(ccfg), nil, nil
		}
		if !vision.GoCVAvailable {
			return nil, nil, fmt.Errorf("classical backend gocv: %w", vision.ErrGoCVDisabled)
		}
		return vision.NewGoCVDetector(ccfg), nil, nil
	}
}

// ClassicalConfig переносит настройки классического детектора.
func ClassicalConfig(cfg *config.Config) vision.ClassicalConfig {
	ccfg := vision.DefaultClassicalConfig()
	ccfg.Variant = vision.Variant(cfg.ClassicalVariant)
	ccfg.Crop = imgproc.Margins{
		Top:    cfg.CropTop,
		Bottom: cfg.CropBottom,
		Left:   cfg.CropLeft,
		Right:  cfg.CropRight,
	}
	ccfg.Colors = entity.NewColorRange(cfg.HSVLower, cfg.HSVUpper)
	ccfg.CannyLow = cfg.CannyLow
	ccfg.CannyHigh = cfg.CannyHigh
	return ccfg
}

// Close освобождает модель.
func (c *Container) Close() {
	if c.engine != nil {
		c.engine.Destroy()
	}
}
