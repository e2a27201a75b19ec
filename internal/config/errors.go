package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidInterval is returned when the detection interval is not positive.
	ErrInvalidInterval = errors.New("invalid detection interval: must be positive")

	// ErrInvalidFrameSize is returned when a camera or display dimension is negative.
	ErrInvalidFrameSize = errors.New("invalid frame size: dimensions must be non-negative")

	// ErrInvalidBackend is returned for an unknown detection backend.
	ErrInvalidBackend = errors.New("invalid detection backend: must be cascade or service")

	// ErrInvalidEncoder is returned for an unknown recording encoder.
	ErrInvalidEncoder = errors.New("invalid recording encoder: must be mjpeg or ffmpeg")

	// ErrInvalidFPS is returned when the recording rate is not positive.
	ErrInvalidFPS = errors.New("invalid recording fps: must be positive")

	// ErrInvalidConfidence is returned when the confidence is outside [0, 1].
	ErrInvalidConfidence = errors.New("invalid min confidence: must be between 0 and 1")

	// ErrInvalidFailureThreshold is returned when the failure threshold is not positive.
	ErrInvalidFailureThreshold = errors.New("invalid failure threshold: must be positive")

	// ErrMissingAddr is returned when the listen address is empty.
	ErrMissingAddr = errors.New("missing listen address")

	// ErrConfigNotFound is returned when an explicitly named config file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
