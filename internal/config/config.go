package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            int
	BackendURL      string
	BackendTimeout  time.Duration // Limit na jedno zapytanie do backendu
	StaticDirectory string
	LogDirectory    string
	DatabasePath    string
	APIToken        string // Pusty = API bez autoryzacji

	CameraDevice  int
	FrameWidth    int
	FrameHeight   int
	DisplayWidth  int  // 0 = rozmiar klatki
	DisplayHeight int  // 0 = rozmiar klatki
	Mirrored      bool // Podglad odbity w poziomie

	FaceCascadePath string
	EyeCascadePath  string

	CaptureEnabled  bool
	PredictEnabled  bool
	OverlayEnabled  bool
	CaptureInterval time.Duration
	PredictDelay    time.Duration
	OverlayInterval time.Duration
	RecordInterval  time.Duration
	ToastInterval   time.Duration

	CaptureQuality  int // Jakosc JPEG dla check-in i predykcji
	RegisterQuality int // Jakosc JPEG dla probek rejestracji

	JournalBufferLimit   int
	JournalFlushInterval time.Duration
}

// Load reads the configuration from the environment, falling back to defaults.
func Load() *Config {
	return &Config{
		Port:            getEnvAsInt("PORT", 5000),
		BackendURL:      getEnv("BACKEND_URL", "http://localhost:8000"),
		BackendTimeout:  getEnvAsDuration("BACKEND_TIMEOUT", 10*time.Second),
		StaticDirectory: getEnv("STATIC_DIR", filepath.Join(".", "static")),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DatabasePath:    getEnv("DB_PATH", filepath.Join(".", "data", "kiosk.db")),
		APIToken:        getEnv("KIOSK_API_TOKEN", ""),

		CameraDevice:  getEnvAsInt("CAMERA_DEVICE", 0),
		FrameWidth:    getEnvAsInt("FRAME_WIDTH", 640),
		FrameHeight:   getEnvAsInt("FRAME_HEIGHT", 480),
		DisplayWidth:  getEnvAsInt("DISPLAY_WIDTH", 0),
		DisplayHeight: getEnvAsInt("DISPLAY_HEIGHT", 0),
		Mirrored:      getEnvAsBool("MIRRORED", true),

		FaceCascadePath: getEnv("FACE_CASCADE", filepath.Join(".", "models", "haarcascade_frontalface_default.xml")),
		EyeCascadePath:  getEnv("EYE_CASCADE", filepath.Join(".", "models", "haarcascade_eye.xml")),

		CaptureEnabled:  getEnvAsBool("CAPTURE_ENABLED", true),
		PredictEnabled:  getEnvAsBool("PREDICT_ENABLED", true),
		OverlayEnabled:  getEnvAsBool("OVERLAY_ENABLED", true),
		CaptureInterval: getEnvAsDuration("CAPTURE_INTERVAL", 1500*time.Millisecond),
		PredictDelay:    getEnvAsDuration("PREDICT_DELAY", 500*time.Millisecond),
		OverlayInterval: getEnvAsDuration("OVERLAY_INTERVAL", 100*time.Millisecond),
		RecordInterval:  getEnvAsDuration("RECORD_INTERVAL", 200*time.Millisecond),
		ToastInterval:   getEnvAsDuration("TOAST_INTERVAL", 3*time.Second),

		CaptureQuality:  getEnvAsInt("CAPTURE_QUALITY", 80),
		RegisterQuality: getEnvAsInt("REGISTER_QUALITY", 90),

		JournalBufferLimit:   getEnvAsInt("JOURNAL_BUFFER_LIMIT", 50),
		JournalFlushInterval: getEnvAsDuration("JOURNAL_FLUSH_INTERVAL", 30*time.Second),
	}
}

// LoadFile loads variables from a .env file into the environment and then
// calls Load. A missing file is not an error unless it was named explicitly.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		_ = godotenv.Load()
		return Load(), nil
	}
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return Load(), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1.5s") or plain milliseconds ("1500").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
