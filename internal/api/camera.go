package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	app "fabric-qc/internal/application"
	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/timeutil"
)

const (
	cameraMinBackoff  = time.Second
	cameraMaxBackoff  = 30 * time.Second
	cameraReadTimeout = 10 * time.Second
	cameraDialTimeout = 10 * time.Second
)

// CameraClient читает JPEG кадры из WebSocket камеры и отдаёт их конвейеру.
// Если конвейер не успевает, устаревшие кадры отбрасываются.
type CameraClient struct {
	url    string
	worker *app.FrameWorker
	clock  timeutil.Clock
	dialer *websocket.Dialer

	received  atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64
}

// CameraStats счётчики кадров камеры
type CameraStats struct {
	Received  uint64 `json:"received"`
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
}

// NewCameraClient создаёт клиента камеры
func NewCameraClient(url string, worker *app.FrameWorker, clock timeutil.Clock) *CameraClient {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &CameraClient{
		url:    url,
		worker: worker,
		clock:  clock,
		dialer: &websocket.Dialer{HandshakeTimeout: cameraDialTimeout},
	}
}

// Run держит соединение с камерой до отмены контекста, переподключаясь с растущей паузой.
func (c *CameraClient) Run(ctx context.Context) error {
	backoff := cameraMinBackoff
	for {
		before := c.received.Load()
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if c.received.Load() > before {
			backoff = cameraMinBackoff
		}
		log.Printf("Camera stream %s ended: %v, reconnecting in %s", c.url, err, backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-c.clock.After(backoff):
		}
		backoff = min(backoff*2, cameraMaxBackoff)
	}
}

// Stats возвращает счётчики кадров
func (c *CameraClient) Stats() CameraStats {
	return CameraStats{
		Received:  c.received.Load(),
		Processed: c.processed.Load(),
		Dropped:   c.dropped.Load(),
	}
}

func (c *CameraClient) stream(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial camera: %w", err)
	}
	defer conn.Close()
	log.Printf("Connected to camera %s", c.url)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-streamCtx.Done()
		conn.Close()
	}()

	latest := make(chan []byte, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.process(streamCtx, latest)
	}()
	defer wg.Wait()
	defer close(latest)

	for {
		conn.SetReadDeadline(time.Now().Add(cameraReadTimeout))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		c.received.Add(1)
		c.offer(latest, data)
	}
}

// offer оставляет в очереди только самый свежий кадр.
func (c *CameraClient) offer(latest chan []byte, frame []byte) {
	select {
	case latest <- frame:
		return
	default:
	}
	select {
	case <-latest:
		c.dropped.Add(1)
	default:
	}
	latest <- frame
}

func (c *CameraClient) process(ctx context.Context, latest <-chan []byte) {
	for frame := range latest {
		if _, err := c.worker.Submit(ctx, frame); err != nil {
			if errors.Is(err, entity.ErrDecode) {
				log.Printf("Camera sent invalid frame: %v", err)
				continue
			}
			if ctx.Err() != nil || errors.Is(err, app.ErrWorkerStopped) {
				return
			}
			log.Printf("Error processing camera frame: %v", err)
			continue
		}
		c.processed.Add(1)
	}
}
