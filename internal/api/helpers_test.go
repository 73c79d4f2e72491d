package api

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	app "fabric-qc/internal/application"
	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/infrastructure/events"
	"fabric-qc/internal/infrastructure/imgproc"
	"fabric-qc/internal/timeutil"
)

type stubStrategy struct {
	defective atomic.Bool
	calls     atomic.Int32
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) Detect(ctx context.Context, frame *imgproc.PixelBuffer) (*entity.DetectionResult, error) {
	s.calls.Add(1)
	if s.defective.Load() {
		return &entity.DetectionResult{IsDefective: true, Boxes: []entity.BoundingBox{{XMax: 4, YMax: 4}}}, nil
	}
	return &entity.DetectionResult{}, nil
}

func (s *stubStrategy) Highlight(frame *imgproc.PixelBuffer, result *entity.DetectionResult) (*imgproc.PixelBuffer, error) {
	return frame.Clone(), nil
}

type harness struct {
	strategy *stubStrategy
	sink     *events.ChannelSink
	hub      *events.Hub
	worker   *app.FrameWorker
	clock    *timeutil.MockClock
}

// newHarness запускает конвейер с воркером и хабом событий до конца теста.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		strategy: &stubStrategy{},
		sink:     events.NewChannelSink(8),
		hub:      events.NewHub(),
		clock:    timeutil.NewMockClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)),
	}
	cfg := app.DefaultPipelineConfig()
	cfg.Pacing = entity.PacingConfig{FrameSkipStride: 1}
	pipeline := app.NewPipeline(h.strategy, h.sink, h.clock, cfg)
	h.worker = app.NewFrameWorker(pipeline, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() {
		h.worker.Run(ctx)
		done <- struct{}{}
	}()
	go func() {
		h.hub.Run(ctx, h.sink.Events())
		done <- struct{}{}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		<-done
	})
	return h
}

func jpegFrame(t *testing.T, value uint8) []byte {
	t.Helper()
	b := imgproc.NewPixelBuffer(16, 16, imgproc.SpaceRGB)
	b.Fill(value, value, value)
	data, err := imgproc.Encode(b, 90)
	require.NoError(t, err)
	return data
}
