package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"fabric-qc/internal/domain/entity"
)

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Frames(t *testing.T) {
	h := newHarness(t)
	srv := NewServer(h.worker, h.hub).Handler()

	rec := do(t, srv, http.MethodGet, "/frames/latest", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/frames", jpegFrame(t, 100))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	processed := rec.Body.Bytes()
	require.NotEmpty(t, processed)

	rec = do(t, srv, http.MethodGet, "/frames/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, processed, rec.Body.Bytes())

	rec = do(t, srv, http.MethodPost, "/frames", []byte("garbage"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	require.Equal(t, "invalid_image", errResp.Code)
}

func TestServer_DetectionToggle(t *testing.T) {
	h := newHarness(t)
	srv := NewServer(h.worker, h.hub).Handler()

	rec := do(t, srv, http.MethodPut, "/detection", []byte(`{"enabled": false}`))
	require.Equal(t, http.StatusOK, rec.Code)

	raw := jpegFrame(t, 50)
	rec = do(t, srv, http.MethodPost, "/frames", raw)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, raw, rec.Body.Bytes())
	require.Zero(t, h.strategy.calls.Load())

	rec = do(t, srv, http.MethodPut, "/detection", []byte(`{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_PacingAndStatus(t *testing.T) {
	h := newHarness(t)
	srv := NewServer(h.worker, h.hub).Handler()

	rec := do(t, srv, http.MethodPut, "/pacing", []byte(`{"cooldown_defect_ms": 2500, "frame_skip": 2}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var pacing PacingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pacing))
	require.Equal(t, int64(2500), pacing.CooldownDefectMs)
	require.Equal(t, int64(0), pacing.CooldownPassMs)
	require.Equal(t, 2, pacing.FrameSkip)

	rec = do(t, srv, http.MethodPut, "/pacing", []byte(`{"cooldown_pass_ms": -1}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodPut, "/pacing", []byte(`{"frame_skip": 0}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	h.strategy.defective.Store(true)
	rec = do(t, srv, http.MethodPost, "/frames", jpegFrame(t, 100))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		SessionID    string `json:"session_id"`
		Strategy     string `json:"strategy"`
		TotalDefects int    `json:"total_defects"`
		LastStatus   string `json:"last_status"`
		Summary      string `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "stub", status.Strategy)
	require.Equal(t, 1, status.TotalDefects)
	require.Equal(t, entity.StatusDefective, status.LastStatus)
	require.Equal(t, "Defects: 1", status.Summary)

	rec = do(t, srv, http.MethodPost, "/session/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), status.SessionID)
}

func TestServer_EventStream(t *testing.T) {
	h := newHarness(t)
	ts := httptest.NewServer(NewServer(h.worker, h.hub).Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.hub.Stats().Subscribers == 1 }, time.Second, 10*time.Millisecond)

	h.strategy.defective.Store(true)
	resp, err := http.Post(ts.URL+"/frames", "image/jpeg", bytes.NewReader(jpegFrame(t, 100)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e entity.Event
	require.NoError(t, conn.ReadJSON(&e))
	require.Equal(t, 1, e.Total)
	require.Equal(t, entity.StatusDefective, e.Status)
	require.Equal(t, "Defects: 1", e.Summary)
}
