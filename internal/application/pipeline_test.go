package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/infrastructure/imgproc"
	"fabric-qc/internal/timeutil"
)

type fakeStrategy struct {
	mu          sync.Mutex
	results     []*entity.DetectionResult
	err         error
	calls       int
	highlighted []*entity.DetectionResult
}

func (s *fakeStrategy) Name() string { return "fake" }

func (s *fakeStrategy) Detect(ctx context.Context, frame *imgproc.PixelBuffer) (*entity.DetectionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) == 0 {
		return clean(), nil
	}
	return s.results[min(s.calls, len(s.results))-1], nil
}

func (s *fakeStrategy) Highlight(frame *imgproc.PixelBuffer, result *entity.DetectionResult) (*imgproc.PixelBuffer, error) {
	s.mu.Lock()
	s.highlighted = append(s.highlighted, result)
	s.mu.Unlock()
	out := frame.Clone()
	if result.IsDefective {
		out.FillRect(out.Bounds(), 255, 0, 0)
	}
	return out, nil
}

func (s *fakeStrategy) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeSink struct {
	events []entity.Event
}

func (s *fakeSink) Publish(ctx context.Context, e entity.Event) error {
	s.events = append(s.events, e)
	return nil
}

func jpegFrame(t *testing.T, value uint8) []byte {
	t.Helper()
	b := imgproc.NewPixelBuffer(32, 24, imgproc.SpaceRGB)
	b.Fill(value, value, value)
	data, err := imgproc.Encode(b, 90)
	require.NoError(t, err)
	return data
}

func noPacing() entity.PacingConfig {
	return entity.PacingConfig{FrameSkipStride: 1}
}

func newTestPipeline(strategy *fakeStrategy, sink *fakeSink, clock timeutil.Clock, pacing entity.PacingConfig) *Pipeline {
	cfg := DefaultPipelineConfig()
	cfg.Pacing = pacing
	return NewPipeline(strategy, sink, clock, cfg)
}

func TestPipeline_NotReadyPassesThrough(t *testing.T) {
	strategy := &fakeStrategy{err: entity.ErrNotReady}
	p := newTestPipeline(strategy, &fakeSink{}, timeutil.NewMockClock(t0), noPacing())
	raw := jpegFrame(t, 120)

	out, err := p.ProcessFrame(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, raw, out)
	require.Equal(t, 1, strategy.Calls())
	require.Equal(t, entity.NewTemporalState(), p.State())
	require.Empty(t, strategy.highlighted)
}

func TestPipeline_DecodeError(t *testing.T) {
	strategy := &fakeStrategy{results: []*entity.DetectionResult{defective(nil)}}
	p := newTestPipeline(strategy, &fakeSink{}, timeutil.NewMockClock(t0), noPacing())

	_, err := p.ProcessFrame(context.Background(), jpegFrame(t, 80))
	require.NoError(t, err)
	before := p.State()

	_, err = p.ProcessFrame(context.Background(), []byte("not an image"))
	require.ErrorIs(t, err, entity.ErrDecode)
	require.Equal(t, before, p.State())
	require.Equal(t, 1, strategy.Calls())
}

func TestPipeline_DetectorErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	p := newTestPipeline(&fakeStrategy{err: boom}, &fakeSink{}, timeutil.NewMockClock(t0), noPacing())

	_, err := p.ProcessFrame(context.Background(), jpegFrame(t, 80))
	require.ErrorIs(t, err, boom)
}

func TestPipeline_DisabledPassesThrough(t *testing.T) {
	strategy := &fakeStrategy{}
	p := newTestPipeline(strategy, &fakeSink{}, timeutil.NewMockClock(t0), noPacing())
	p.SetDetectionEnabled(false)
	require.False(t, p.DetectionEnabled())
	raw := jpegFrame(t, 60)

	out, err := p.ProcessFrame(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, raw, out)
	require.Zero(t, strategy.Calls())
	require.Zero(t, p.Snapshot().Frames)
}

func TestPipeline_EncodesAnnotatedFrame(t *testing.T) {
	strategy := &fakeStrategy{results: []*entity.DetectionResult{defective(nil)}}
	p := newTestPipeline(strategy, &fakeSink{}, timeutil.NewMockClock(t0), noPacing())

	out, err := p.ProcessFrame(context.Background(), jpegFrame(t, 0))
	require.NoError(t, err)
	require.Equal(t, out, p.LastOutput())

	decoded, err := imgproc.Decode(out)
	require.NoError(t, err)
	require.Equal(t, 32, decoded.Width)
	require.Equal(t, 24, decoded.Height)
	require.Greater(t, decoded.At(16, 12, 0), uint8(200))
}

func TestPipeline_FrameSkip(t *testing.T) {
	strategy := &fakeStrategy{}
	pacing := noPacing()
	pacing.FrameSkipStride = 3
	p := newTestPipeline(strategy, &fakeSink{}, timeutil.NewMockClock(t0), pacing)
	ctx := context.Background()

	first, err := p.ProcessFrame(ctx, jpegFrame(t, 10))
	require.NoError(t, err)
	second, err := p.ProcessFrame(ctx, jpegFrame(t, 200))
	require.NoError(t, err)
	require.Equal(t, first, second)

	for i := 0; i < 3; i++ {
		_, err = p.ProcessFrame(ctx, jpegFrame(t, 10))
		require.NoError(t, err)
	}
	require.Equal(t, 2, strategy.Calls())
	require.Equal(t, uint64(5), p.Snapshot().Frames)
}

func TestPipeline_CooldownSkipsDetection(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	strategy := &fakeStrategy{results: []*entity.DetectionResult{
		{IsDefective: true, Boxes: []entity.BoundingBox{{XMax: 5, YMax: 5}}},
		clean(),
	}}
	pacing := entity.PacingConfig{CooldownAfterDefect: 5 * time.Second, CooldownAfterPass: time.Second, FrameSkipStride: 1}
	p := newTestPipeline(strategy, &fakeSink{}, clock, pacing)
	ctx := context.Background()

	_, err := p.ProcessFrame(ctx, jpegFrame(t, 90))
	require.NoError(t, err)
	require.Equal(t, 1, strategy.Calls())

	clock.Advance(time.Second)
	_, err = p.ProcessFrame(ctx, jpegFrame(t, 90))
	require.NoError(t, err)
	require.Equal(t, 1, strategy.Calls())

	banner := strategy.highlighted[1]
	require.True(t, banner.IsDefective)
	require.Empty(t, banner.Boxes)

	clock.Advance(4 * time.Second)
	_, err = p.ProcessFrame(ctx, jpegFrame(t, 90))
	require.NoError(t, err)
	require.Equal(t, 2, strategy.Calls())
}

func TestPipeline_PublishesEvents(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	sink := &fakeSink{}
	strategy := &fakeStrategy{results: []*entity.DetectionResult{
		defective(nil), defective(nil), clean(), defective(nil),
	}}
	pacing := noPacing()
	pacing.MinInterEventGap = time.Second
	p := newTestPipeline(strategy, sink, clock, pacing)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := p.ProcessFrame(ctx, jpegFrame(t, 100))
		require.NoError(t, err)
		clock.Advance(2 * time.Second)
	}

	require.Len(t, sink.events, 2)
	snap := p.Snapshot()
	for i, e := range sink.events {
		require.Equal(t, snap.SessionID, e.SessionID)
		require.NotEqual(t, e.ID, sink.events[1-i].ID)
		require.Equal(t, i+1, e.Total)
	}
	require.Equal(t, "Defects: 2", snap.Summary)
	require.Equal(t, 2, snap.TotalDefects)
	require.Equal(t, "fake", snap.Strategy)
}

func TestPipeline_SetPacingAndReset(t *testing.T) {
	p := newTestPipeline(&fakeStrategy{results: []*entity.DetectionResult{defective(nil)}}, &fakeSink{}, timeutil.NewMockClock(t0), noPacing())
	p.SetPacing(entity.PacingConfig{CooldownAfterPass: -time.Second, FrameSkipStride: 0})
	require.Equal(t, entity.PacingConfig{FrameSkipStride: 1}, p.Pacing())

	_, err := p.ProcessFrame(context.Background(), jpegFrame(t, 100))
	require.NoError(t, err)
	session := p.Snapshot().SessionID
	require.Equal(t, 1, p.State().TotalDefects)

	p.Reset()
	require.NotEqual(t, session, p.Snapshot().SessionID)
	require.Zero(t, p.State().TotalDefects)
	require.Nil(t, p.LastOutput())
}

func TestPipeline_InspectLeavesSessionUntouched(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	sink := &fakeSink{}
	strategy := &fakeStrategy{results: []*entity.DetectionResult{clean(), defective(nil)}}
	pacing := entity.PacingConfig{CooldownAfterPass: 5 * time.Second, CooldownAfterDefect: 5 * time.Second, FrameSkipStride: 1}
	p := newTestPipeline(strategy, sink, clock, pacing)
	ctx := context.Background()

	_, err := p.ProcessFrame(ctx, jpegFrame(t, 100))
	require.NoError(t, err)
	state, last, frames := p.State(), p.LastOutput(), p.Snapshot().Frames

	// Снимок приходит во время паузы камеры, но анализируется всё равно.
	clock.Advance(time.Second)
	out, result, err := p.Inspect(ctx, jpegFrame(t, 40))
	require.NoError(t, err)
	require.NotEmpty(t, out)
	require.True(t, result.IsDefective)
	require.Equal(t, 2, strategy.Calls())

	require.Equal(t, state, p.State())
	require.Equal(t, last, p.LastOutput())
	require.Equal(t, frames, p.Snapshot().Frames)
	require.Empty(t, sink.events)

	_, _, err = p.Inspect(ctx, []byte("not an image"))
	require.ErrorIs(t, err, entity.ErrDecode)
}
