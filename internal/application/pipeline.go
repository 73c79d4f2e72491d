package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/domain/port"
	"fabric-qc/internal/infrastructure/imgproc"
	"fabric-qc/internal/timeutil"
)

// PipelineConfig начальные настройки конвейера.
type PipelineConfig struct {
	Pacing           entity.PacingConfig
	Quality          int  // качество JPEG на выходе
	DetectionEnabled bool // анализировать кадры сразу после запуска
}

// DefaultPipelineConfig настройки по умолчанию.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Pacing:           entity.DefaultPacing(),
		Quality:          imgproc.DefaultQuality,
		DetectionEnabled: true,
	}
}

// Snapshot состояние конвейера для внешних запросов.
type Snapshot struct {
	SessionID        uuid.UUID           `json:"session_id"`
	Strategy         string              `json:"strategy"`
	DetectionEnabled bool                `json:"detection_enabled"`
	Frames           uint64              `json:"frames"`
	Pacing           entity.PacingConfig `json:"pacing"`
	TotalDefects     int                 `json:"total_defects"`
	PerClass         map[string]int      `json:"per_class,omitempty"`
	LastStatus       string              `json:"last_status"`
	Summary          string              `json:"summary"`
}

// Pipeline обрабатывает кадры по одному: декодирование, детекция,
// фильтрация во времени, разметка и кодирование.
// Не потокобезопасен: все вызовы идут через FrameWorker.
type Pipeline struct {
	strategy port.DetectionStrategy
	sink     port.EventSink
	clock    timeutil.Clock
	filter   TemporalFilter
	quality  int
	enabled  bool

	session    uuid.UUID
	state      entity.TemporalState
	frames     uint64
	lastOutput []byte
	lastResult *entity.DetectionResult
}

// NewPipeline создаёт конвейер. sink может быть nil, тогда события не отправляются.
func NewPipeline(strategy port.DetectionStrategy, sink port.EventSink, clock timeutil.Clock, cfg PipelineConfig) *Pipeline {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	p := &Pipeline{
		strategy: strategy,
		sink:     sink,
		clock:    clock,
		quality:  cfg.Quality,
		enabled:  cfg.DetectionEnabled,
	}
	p.SetPacing(cfg.Pacing)
	p.Reset()
	return p
}

// ProcessFrame обрабатывает один закодированный кадр и возвращает
// размеченный кадр в JPEG. Если детекция выключена или модель не готова,
// возвращает исходные байты без изменений.
func (p *Pipeline) ProcessFrame(ctx context.Context, raw []byte) ([]byte, error) {
	frame, err := imgproc.Decode(raw)
	if err != nil {
		return nil, err
	}
	if !p.enabled {
		return raw, nil
	}

	p.frames++
	if stride := uint64(p.filter.Pacing.FrameSkipStride); stride > 1 && (p.frames-1)%stride != 0 {
		if p.lastOutput != nil {
			return p.lastOutput, nil
		}
		return raw, nil
	}

	now := p.clock.Now()
	if p.state.InCooldown(now) {
		return p.render(frame, p.lastResult.StatusOnly())
	}

	result, err := p.strategy.Detect(ctx, frame)
	if errors.Is(err, entity.ErrNotReady) {
		return raw, nil
	}
	if err != nil {
		return nil, fmt.Errorf("detect with %s: %w", p.strategy.Name(), err)
	}

	next, event := p.filter.Step(p.state, result, now)
	p.state = next
	p.lastResult = result
	if event != nil {
		p.publish(ctx, *event)
	}

	return p.render(frame, result)
}

// Inspect анализирует отдельный снимок вне потока камеры. Состояние сессии,
// паузы, счётчик кадров и последний кадр не меняются, события не отправляются.
func (p *Pipeline) Inspect(ctx context.Context, raw []byte) ([]byte, *entity.DetectionResult, error) {
	frame, err := imgproc.Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	result, err := p.strategy.Detect(ctx, frame)
	if err != nil {
		return nil, nil, fmt.Errorf("detect with %s: %w", p.strategy.Name(), err)
	}
	out, err := p.annotate(frame, result)
	if err != nil {
		return nil, nil, err
	}
	return out, result, nil
}

func (p *Pipeline) render(frame *imgproc.PixelBuffer, result *entity.DetectionResult) ([]byte, error) {
	out, err := p.annotate(frame, result)
	if err != nil {
		return nil, err
	}
	p.lastOutput = out
	return out, nil
}

func (p *Pipeline) annotate(frame *imgproc.PixelBuffer, result *entity.DetectionResult) ([]byte, error) {
	annotated, err := p.strategy.Highlight(frame, result)
	if err != nil {
		return nil, fmt.Errorf("highlight: %w", err)
	}
	return imgproc.Encode(annotated, p.quality)
}

func (p *Pipeline) publish(ctx context.Context, e entity.Event) {
	if p.sink == nil {
		return
	}
	e.ID = uuid.New()
	e.SessionID = p.session
	if err := p.sink.Publish(ctx, e); err != nil {
		log.Printf("Error publishing event %s: %v", e.ID, err)
	}
}

// SetDetectionEnabled включает или выключает анализ кадров.
func (p *Pipeline) SetDetectionEnabled(enabled bool) {
	p.enabled = enabled
}

// DetectionEnabled сообщает, включён ли анализ.
func (p *Pipeline) DetectionEnabled() bool {
	return p.enabled
}

// SetPacing меняет паузы и шаг пропуска кадров. Отрицательные значения
// заменяются нулём, шаг меньше единицы единицей.
func (p *Pipeline) SetPacing(pacing entity.PacingConfig) {
	pacing.CooldownAfterPass = max(pacing.CooldownAfterPass, 0)
	pacing.CooldownAfterDefect = max(pacing.CooldownAfterDefect, 0)
	pacing.MinInterEventGap = max(pacing.MinInterEventGap, 0)
	pacing.FrameSkipStride = max(pacing.FrameSkipStride, 1)
	p.filter = TemporalFilter{Pacing: pacing}
}

// Pacing возвращает текущие паузы.
func (p *Pipeline) Pacing() entity.PacingConfig {
	return p.filter.Pacing
}

// State возвращает копию накопленного состояния.
func (p *Pipeline) State() entity.TemporalState {
	return p.state.Clone()
}

// LastOutput последний размеченный кадр, nil если его ещё нет.
func (p *Pipeline) LastOutput() []byte {
	return p.lastOutput
}

// Reset начинает новую сессию: счётчики и паузы сбрасываются.
func (p *Pipeline) Reset() {
	p.session = uuid.New()
	p.state = entity.NewTemporalState()
	p.frames = 0
	p.lastOutput = nil
	p.lastResult = nil
}

// Snapshot собирает состояние для статуса.
func (p *Pipeline) Snapshot() Snapshot {
	state := p.state.Clone()
	return Snapshot{
		SessionID:        p.session,
		Strategy:         p.strategy.Name(),
		DetectionEnabled: p.enabled,
		Frames:           p.frames,
		Pacing:           p.filter.Pacing,
		TotalDefects:     state.TotalDefects,
		PerClass:         state.PerClass,
		LastStatus:       state.LastStatus,
		Summary:          state.Summary(),
	}
}
