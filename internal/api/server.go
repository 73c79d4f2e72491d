package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	app "fabric-qc/internal/application"
	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/infrastructure/events"
)

// MaxFrameSize ограничение на размер кадра в теле запроса.
const MaxFrameSize = 20 << 20

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsBuffer       = 16
)

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusResponse состояние конвейера и доставки событий
type StatusResponse struct {
	app.Snapshot
	Events events.Stats `json:"events"`
}

// PacingRequest частичное обновление пауз. Пустые поля не меняются.
type PacingRequest struct {
	CooldownPassMs   *int64 `json:"cooldown_pass_ms,omitempty"`
	CooldownDefectMs *int64 `json:"cooldown_defect_ms,omitempty"`
	MinEventGapMs    *int64 `json:"min_event_gap_ms,omitempty"`
	FrameSkip        *int   `json:"frame_skip,omitempty"`
}

// PacingResponse текущие паузы в миллисекундах
type PacingResponse struct {
	CooldownPassMs   int64 `json:"cooldown_pass_ms"`
	CooldownDefectMs int64 `json:"cooldown_defect_ms"`
	MinEventGapMs    int64 `json:"min_event_gap_ms"`
	FrameSkip        int   `json:"frame_skip"`
}

// Server HTTP интерфейс конвейера: кадры, управление и поток событий
type Server struct {
	worker   *app.FrameWorker
	hub      *events.Hub
	router   *mux.Router
	upgrader websocket.Upgrader
}

// NewServer создаёт сервер и регистрирует маршруты
func NewServer(worker *app.FrameWorker, hub *events.Hub) *Server {
	s := &Server{
		worker: worker,
		hub:    hub,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/frames", s.handleFrame).Methods(http.MethodPost)
	s.router.HandleFunc("/frames/latest", s.handleLatest).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/detection", s.handleDetection).Methods(http.MethodPut)
	s.router.HandleFunc("/pacing", s.handlePacing).Methods(http.MethodPut)
	s.router.HandleFunc("/session/reset", s.handleReset).Methods(http.MethodPost)
	s.router.HandleFunc("/ws/events", s.handleEvents).Methods(http.MethodGet)
}

// Handler возвращает корневой обработчик
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe слушает addr до отмены контекста
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:      s.router,
		Addr:         addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxFrameSize))
	if err != nil {
		sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	out, err := s.worker.Submit(r.Context(), frame)
	switch {
	case errors.Is(err, entity.ErrDecode):
		sendErrorResponse(w, "invalid_image", "Failed to decode image", http.StatusBadRequest)
		return
	case errors.Is(err, entity.ErrGeometry):
		sendErrorResponse(w, "invalid_image", err.Error(), http.StatusUnprocessableEntity)
		return
	case errors.Is(err, app.ErrWorkerStopped):
		sendErrorResponse(w, "unavailable", err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		sendErrorResponse(w, "processing_error", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJPEG(w, out)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	var out []byte
	if !s.do(w, r, func(p *app.Pipeline) { out = p.LastOutput() }) {
		return
	}
	if out == nil {
		sendErrorResponse(w, "not_found", "No processed frames yet", http.StatusNotFound)
		return
	}
	writeJPEG(w, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var snap app.Snapshot
	if !s.do(w, r, func(p *app.Pipeline) { snap = p.Snapshot() }) {
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Snapshot: snap, Events: s.hub.Stats()})
}

func (s *Server) handleDetection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		sendErrorResponse(w, "invalid_request", `Expected {"enabled": true|false}`, http.StatusBadRequest)
		return
	}
	if !s.do(w, r, func(p *app.Pipeline) { p.SetDetectionEnabled(*req.Enabled) }) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}

func (s *Server) handlePacing(w http.ResponseWriter, r *http.Request) {
	var req PacingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	var pacing entity.PacingConfig
	if !s.do(w, r, func(p *app.Pipeline) {
		p.SetPacing(req.apply(p.Pacing()))
		pacing = p.Pacing()
	}) {
		return
	}
	writeJSON(w, http.StatusOK, PacingResponse{
		CooldownPassMs:   pacing.CooldownAfterPass.Milliseconds(),
		CooldownDefectMs: pacing.CooldownAfterDefect.Milliseconds(),
		MinEventGapMs:    pacing.MinInterEventGap.Milliseconds(),
		FrameSkip:        pacing.FrameSkipStride,
	})
}

func (req PacingRequest) validate() error {
	for name, v := range map[string]*int64{
		"cooldown_pass_ms":   req.CooldownPassMs,
		"cooldown_defect_ms": req.CooldownDefectMs,
		"min_event_gap_ms":   req.MinEventGapMs,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if req.FrameSkip != nil && *req.FrameSkip < 1 {
		return errors.New("frame_skip must be at least 1")
	}
	return nil
}

func (req PacingRequest) apply(p entity.PacingConfig) entity.PacingConfig {
	if req.CooldownPassMs != nil {
		p.CooldownAfterPass = time.Duration(*req.CooldownPassMs) * time.Millisecond
	}
	if req.CooldownDefectMs != nil {
		p.CooldownAfterDefect = time.Duration(*req.CooldownDefectMs) * time.Millisecond
	}
	if req.MinEventGapMs != nil {
		p.MinInterEventGap = time.Duration(*req.MinEventGapMs) * time.Millisecond
	}
	if req.FrameSkip != nil {
		p.FrameSkipStride = *req.FrameSkip
	}
	return p
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var snap app.Snapshot
	if !s.do(w, r, func(p *app.Pipeline) {
		p.Reset()
		snap = p.Snapshot()
	}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": snap.SessionID.String()})
}

// handleEvents отправляет события клиенту WebSocket в JSON, пока он подключён.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id, ch := s.hub.Subscribe(wsBuffer)
	defer s.hub.Unsubscribe(id)

	// Входящие сообщения не нужны, читаем только чтобы заметить закрытие.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				deadline := time.Now().Add(wsWriteTimeout)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), deadline)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// do выполняет fn на горутине конвейера. При ошибке уже отправлен ответ.
func (s *Server) do(w http.ResponseWriter, r *http.Request, fn func(p *app.Pipeline)) bool {
	if err := s.worker.Do(r.Context(), fn); err != nil {
		sendErrorResponse(w, "unavailable", err.Error(), http.StatusServiceUnavailable)
		return false
	}
	return true
}

func writeJPEG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("Error writing frame: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
