// Package config loads facetrack settings from defaults, a YAML file and
// FACETRACK_* environment variables, in that order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

// AppName is used for the XDG directories and the environment prefix.
const AppName = "facetrack"

// Detection backends.
const (
	BackendCascade = "cascade"
	BackendService = "service"
)

// Recording encoders.
const (
	EncoderMJPEG  = "mjpeg"
	EncoderFFmpeg = "ffmpeg"
)

// Defaults.
const (
	DefaultAddr             = ":8080"
	DefaultInterval         = 100 * time.Millisecond
	DefaultFailureThreshold = 3
	DefaultCameraWidth      = 640
	DefaultCameraHeight     = 480
	DefaultRecordingFPS     = 15
	DefaultMaxFaces         = 10
	DefaultMinConfidence    = 0.5
	DefaultPersistKey       = "recordedVideoBase64"
)

// Config is the complete application configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Camera    CameraConfig    `yaml:"camera"`
	Detection DetectionConfig `yaml:"detection"`
	Display   DisplayConfig   `yaml:"display"`
	Recording RecordingConfig `yaml:"recording"`
	Server    ServerConfig    `yaml:"server"`
}

// CameraConfig selects the capture device.
type CameraConfig struct {
	Device int `yaml:"device"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DetectionConfig tunes the detection loop.
type DetectionConfig struct {
	Backend          string        `yaml:"backend"`
	ModelDir         string        `yaml:"model_dir"` // defaults to <data_dir>/models
	Interval         time.Duration `yaml:"interval"`
	FailureThreshold int           `yaml:"failure_threshold"`
	MaxFaces         int           `yaml:"max_faces"`
	MinConfidence    float64       `yaml:"min_confidence"`
}

// DisplayConfig sizes the overlay surface. Zero means "match the camera".
type DisplayConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RecordingConfig selects the encoder and where recordings go.
type RecordingConfig struct {
	Encoder     string `yaml:"encoder"`
	FPS         int    `yaml:"fps"`
	FFmpegPath  string `yaml:"ffmpeg_path"`
	DownloadDir string `yaml:"download_dir"`
	PersistKey  string `yaml:"persist_key"`
}

// ServerConfig configures the HTTP viewer and the tray.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	WebDir string `yaml:"web_dir"`
	Tray   bool   `yaml:"tray"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		DataDir: XDGDataDir(),
		Camera: CameraConfig{
			Width:  DefaultCameraWidth,
			Height: DefaultCameraHeight,
		},
		Detection: DetectionConfig{
			Backend:          BackendCascade,
			Interval:         DefaultInterval,
			FailureThreshold: DefaultFailureThreshold,
			MaxFaces:         DefaultMaxFaces,
			MinConfidence:    DefaultMinConfidence,
		},
		Recording: RecordingConfig{
			Encoder:     EncoderMJPEG,
			FPS:         DefaultRecordingFPS,
			FFmpegPath:  "ffmpeg",
			DownloadDir: xdg.UserDirs.Download,
			PersistKey:  DefaultPersistKey,
		},
		Server: ServerConfig{
			Addr: DefaultAddr,
			Tray: true,
		},
	}
}

// XDGDataDir returns the XDG data directory for facetrack.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for facetrack.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ModelDir returns the detection model directory.
func (c *Config) ModelDir() string {
	if c.Detection.ModelDir != "" {
		return c.Detection.ModelDir
	}
	return filepath.Join(c.DataDir, "models")
}

// DatabasePath returns the SQLite database path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, AppName+".db")
}

// HooksDir returns the directory hooks are discovered in.
func (c *Config) HooksDir() string {
	return filepath.Join(c.DataDir, "hooks")
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Detection.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.Detection.FailureThreshold <= 0 {
		return ErrInvalidFailureThreshold
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		return ErrInvalidConfidence
	}
	switch c.Detection.Backend {
	case BackendCascade, BackendService:
	default:
		return ErrInvalidBackend
	}

	if c.Camera.Width < 0 || c.Camera.Height < 0 || c.Display.Width < 0 || c.Display.Height < 0 {
		return ErrInvalidFrameSize
	}

	switch c.Recording.Encoder {
	case EncoderMJPEG, EncoderFFmpeg:
	default:
		return ErrInvalidEncoder
	}
	if c.Recording.FPS <= 0 {
		return ErrInvalidFPS
	}

	if c.Server.Addr == "" {
		return ErrMissingAddr
	}

	return nil
}

// applyEnv overrides fields from FACETRACK_* environment variables.
func (c *Config) applyEnv() {
	envString("FACETRACK_DATA_DIR", &c.DataDir)

	envInt("FACETRACK_CAMERA_DEVICE", &c.Camera.Device)
	envInt("FACETRACK_CAMERA_WIDTH", &c.Camera.Width)
	envInt("FACETRACK_CAMERA_HEIGHT", &c.Camera.Height)

	envString("FACETRACK_DETECTION_BACKEND", &c.Detection.Backend)
	envString("FACETRACK_MODEL_DIR", &c.Detection.ModelDir)
	envDuration("FACETRACK_DETECTION_INTERVAL", &c.Detection.Interval)
	envInt("FACETRACK_FAILURE_THRESHOLD", &c.Detection.FailureThreshold)

	envInt("FACETRACK_DISPLAY_WIDTH", &c.Display.Width)
	envInt("FACETRACK_DISPLAY_HEIGHT", &c.Display.Height)

	envString("FACETRACK_RECORDING_ENCODER", &c.Recording.Encoder)
	envInt("FACETRACK_RECORDING_FPS", &c.Recording.FPS)
	envString("FACETRACK_FFMPEG_PATH", &c.Recording.FFmpegPath)
	envString("FACETRACK_DOWNLOAD_DIR", &c.Recording.DownloadDir)

	envString("FACETRACK_ADDR", &c.Server.Addr)
	envString("FACETRACK_WEB_DIR", &c.Server.WebDir)
	envBool("FACETRACK_TRAY", &c.Server.Tray)
}

// envString sets *dst when the variable is non-empty.
func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt sets *dst when the variable parses as an integer. Invalid values
// are ignored.
func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
