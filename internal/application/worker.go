package app

import (
	"context"
	"errors"
)

// ErrWorkerStopped очередь кадров остановлена.
var ErrWorkerStopped = errors.New("frame worker stopped")

// DefaultQueueSize размер очереди кадров по умолчанию.
const DefaultQueueSize = 4

type job func(ctx context.Context)

// FrameWorker единственный потребитель очереди кадров и команд.
// Все обращения к Pipeline выполняются на его горутине.
type FrameWorker struct {
	pipeline *Pipeline
	jobs     chan job
	done     chan struct{}
}

// NewFrameWorker создаёт очередь на size заданий.
func NewFrameWorker(pipeline *Pipeline, size int) *FrameWorker {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &FrameWorker{
		pipeline: pipeline,
		jobs:     make(chan job, size),
		done:     make(chan struct{}),
	}
}

// Run обрабатывает задания до отмены контекста.
func (w *FrameWorker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-w.jobs:
			j(ctx)
		}
	}
}

// Submit ставит кадр в очередь и ждёт результат обработки.
func (w *FrameWorker) Submit(ctx context.Context, frame []byte) ([]byte, error) {
	type reply struct {
		out []byte
		err error
	}
	replies := make(chan reply, 1)
	err := w.enqueue(ctx, func(ctx context.Context) {
		out, err := w.pipeline.ProcessFrame(ctx, frame)
		replies <- reply{out: out, err: err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-replies:
		return r.out, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.done:
		return nil, ErrWorkerStopped
	}
}

// Do выполняет fn на горутине конвейера и ждёт завершения.
func (w *FrameWorker) Do(ctx context.Context, fn func(p *Pipeline)) error {
	finished := make(chan struct{})
	err := w.enqueue(ctx, func(context.Context) {
		fn(w.pipeline)
		close(finished)
	})
	if err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return ErrWorkerStopped
	}
}

func (w *FrameWorker) enqueue(ctx context.Context, j job) error {
	select {
	case <-w.done:
		return ErrWorkerStopped
	default:
	}
	select {
	case w.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return ErrWorkerStopped
	}
}
