package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config настройки сервиса из переменных окружения
type Config struct {
	TelegramToken string
	HTTPAddr      string
	CameraURL     string

	Detector         string // classical или neural
	ClassicalVariant string // direct или silhouette
	ClassicalBackend string // auto, go или gocv

	CropTop, CropBottom, CropLeft, CropRight int
	HSVLower, HSVUpper                       [3]float64
	CannyLow, CannyHigh                      float64

	ModelPath           string
	ORTLibPath          string
	ModelLabels         []string
	ConfidenceThreshold float64
	NMSThreshold        float64
	ModelColorOrder     string // rgb или bgr

	CooldownPass   time.Duration
	CooldownDefect time.Duration
	MinEventGap    time.Duration
	FrameSkip      int

	JPEGQuality      int
	DetectionEnabled bool
	EventBuffer      int
	FrameQueue       int
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	return FromEnv(os.LookupEnv)
}

// FromEnv собирает конфигурацию из источника переменных.
// Некорректное значение любой переменной приводит к ошибке.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup}

	cfg := &Config{
		TelegramToken: r.str("TELEGRAM_TOKEN", ""),
		HTTPAddr:      r.str("HTTP_ADDR", ":8080"),
		CameraURL:     r.str("CAMERA_URL", ""),

		Detector:         r.oneOf("DETECTOR", "classical", "classical", "neural"),
		ClassicalVariant: r.oneOf("CLASSICAL_VARIANT", "direct", "direct", "silhouette"),
		ClassicalBackend: r.oneOf("CLASSICAL_BACKEND", "auto", "auto", "go", "gocv"),

		CropTop:    r.nonNegative("CROP_TOP", 100),
		CropBottom: r.nonNegative("CROP_BOTTOM", 0),
		CropLeft:   r.nonNegative("CROP_LEFT", 0),
		CropRight:  r.nonNegative("CROP_RIGHT", 0),
		HSVLower:   r.triple("HSV_LOWER", [3]float64{30, 100, 100}),
		HSVUpper:   r.triple("HSV_UPPER", [3]float64{106, 140, 171}),
		CannyLow:   r.float("CANNY_LOW", 100),
		CannyHigh:  r.float("CANNY_HIGH", 150),

		ModelPath:           r.str("MODEL_PATH", ""),
		ORTLibPath:          r.str("ORT_LIB_PATH", ""),
		ModelLabels:         r.list("MODEL_LABELS"),
		ConfidenceThreshold: r.fraction("CONF_THRESHOLD", 0.5),
		NMSThreshold:        r.fraction("NMS_THRESHOLD", 0.5),
		ModelColorOrder:     r.oneOf("MODEL_COLOR_ORDER", "rgb", "rgb", "bgr"),

		CooldownPass:   r.millis("COOLDOWN_PASS_MS", 5*time.Second),
		CooldownDefect: r.millis("COOLDOWN_DEFECT_MS", 5*time.Second),
		MinEventGap:    r.millis("MIN_EVENT_GAP_MS", time.Second),
		FrameSkip:      r.positive("FRAME_SKIP", 1),

		JPEGQuality:      r.positive("JPEG_QUALITY", 100),
		DetectionEnabled: r.boolean("DETECTION_ENABLED", true),
		EventBuffer:      r.positive("EVENT_BUFFER", 64),
		FrameQueue:       r.positive("FRAME_QUEUE", 4),
	}

	if r.err != nil {
		return nil, r.err
	}
	if cfg.JPEGQuality > 100 {
		return nil, fmt.Errorf("JPEG_QUALITY: must be in 1..100, got %d", cfg.JPEGQuality)
	}
	if cfg.CannyLow > cfg.CannyHigh {
		return nil, fmt.Errorf("CANNY_LOW (%v) must not exceed CANNY_HIGH (%v)", cfg.CannyLow, cfg.CannyHigh)
	}
	if cfg.Detector == "neural" && cfg.ModelPath == "" {
		return nil, fmt.Errorf("MODEL_PATH is required for DETECTOR=neural")
	}
	return cfg, nil
}

// reader запоминает первую ошибку разбора.
type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) fail(key, value, reason string) {
	if r.err == nil {
		r.err = fmt.Errorf("%s=%q: %s", key, value, reason)
	}
}

func (r *reader) str(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r *reader) oneOf(key, def string, allowed ...string) string {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	r.fail(key, v, "expected one of "+strings.Join(allowed, ", "))
	return def
}

func (r *reader) integer(key string, def, lo int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, "not an integer")
		return def
	}
	if n < lo {
		r.fail(key, v, fmt.Sprintf("must be at least %d", lo))
		return def
	}
	return n
}

func (r *reader) nonNegative(key string, def int) int { return r.integer(key, def, 0) }
func (r *reader) positive(key string, def int) int    { return r.integer(key, def, 1) }

func (r *reader) float(key string, def float64) float64 {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		r.fail(key, v, "expected a non-negative number")
		return def
	}
	return f
}

func (r *reader) fraction(key string, def float64) float64 {
	f := r.float(key, def)
	if f > 1 {
		r.fail(key, strconv.FormatFloat(f, 'g', -1, 64), "must be in [0,1]")
		return def
	}
	return f
}

func (r *reader) millis(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		r.fail(key, v, "expected milliseconds >= 0")
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func (r *reader) boolean(key string, def bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, "expected true or false")
		return def
	}
	return b
}

// triple разбирает "h,s,v".
func (r *reader) triple(key string, def [3]float64) [3]float64 {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		r.fail(key, v, "expected three comma-separated numbers")
		return def
	}
	var out [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			r.fail(key, v, "expected three comma-separated numbers")
			return def
		}
		out[i] = f
	}
	return out
}

func (r *reader) list(key string) []string {
	v, ok := r.raw(key)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
