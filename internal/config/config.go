// Package config defines the service configuration and converts it into the
// per-package configuration structs.
package config

import (
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/detection"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/pose"
)

// Config contains process configuration.
type Config struct {
	Log         Log         `koanf:"log"`
	Detection   Detection   `koanf:"detection"`
	Features    Features    `koanf:"features"`
	Heuristic   Heuristic   `koanf:"heuristic"`
	Trainable   Trainable   `koanf:"trainable"`
	Training    Training    `koanf:"training"`
	Calibration Calibration `koanf:"calibration"`
	Remote      Remote      `koanf:"remote"`
	Server      Server      `koanf:"server"`
	Store       Store       `koanf:"store"`
	Plugins     Plugins     `koanf:"plugins"`
}

// Log controls verbosity (debug, info, warn, error) and output format
// (text or json).
type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Detection configures the orchestrator.
type Detection struct {
	HistoryCapacity int           `koanf:"history_capacity"`
	MinHistory      int           `koanf:"min_history"`
	Cooldown        time.Duration `koanf:"cooldown"`
	NotableVelocity float64       `koanf:"notable_velocity"`
	ConfidenceFloor float64       `koanf:"confidence_floor"`
	Landmarks       []string      `koanf:"landmarks"`
}

// Features configures feature extraction and movement tracking.
type Features struct {
	WindowSize             int     `koanf:"window_size"`
	MinFrames              int     `koanf:"min_frames"`
	ConfidenceFloor        float64 `koanf:"confidence_floor"`
	MinSignificantMovement float64 `koanf:"min_significant_movement"`
	PauseThreshold         float64 `koanf:"pause_threshold"`
	SmoothJitterMax        float64 `koanf:"smooth_jitter_max"`
	DirectionDeadZone      float64 `koanf:"direction_dead_zone"`
	StartThreshold         float64 `koanf:"start_threshold"`
	EndThreshold           float64 `koanf:"end_threshold"`
}

// Heuristic holds the rule-based classifier thresholds.
type Heuristic struct {
	Threshold       float64 `koanf:"threshold"`
	MinSpeed        float64 `koanf:"min_speed"`
	MaxJitter       float64 `koanf:"max_jitter"`
	MinAcceleration float64 `koanf:"min_acceleration"`
	MinDuration     float64 `koanf:"min_duration"`
	MaxDuration     float64 `koanf:"max_duration"`
	MaxFrequency    float64 `koanf:"max_frequency"`
	MinSteadiness   float64 `koanf:"min_steadiness"`
	MinPattern      float64 `koanf:"min_pattern"`
	MinContinuity   float64 `koanf:"min_continuity"`
	MinMagnitude    float64 `koanf:"min_magnitude"`
	TremorVeto      bool    `koanf:"tremor_veto"`
	MotionGate      bool    `koanf:"motion_gate"`
}

// Trainable configures the per-user model and its data augmentation.
type Trainable struct {
	Enabled   bool    `koanf:"enabled"`
	Threshold float64 `koanf:"threshold"`
	Augment   bool    `koanf:"augment"`

	AugmentJitter    float64 `koanf:"augment_jitter"`
	MaxClassRatio    float64 `koanf:"max_class_ratio"`
	MaxAugmentFactor int     `koanf:"max_augment_factor"`
}

// Training configures a training run.
type Training struct {
	Epochs          int           `koanf:"epochs"`
	BatchSize       int           `koanf:"batch_size"`
	LearningRate    float64       `koanf:"learning_rate"`
	ValidationSplit float64       `koanf:"validation_split"`
	Dropout         float64       `koanf:"dropout"`
	Timeout         time.Duration `koanf:"timeout"`
	Seed            uint64        `koanf:"seed"`
}

// Calibration configures sample collection, quality scoring and the
// training gate.
type Calibration struct {
	UserID               string  `koanf:"user_id"`
	TargetSamples        int     `koanf:"target_samples"`
	BalanceCeiling       float64 `koanf:"balance_ceiling"`
	DiversityTarget      int     `koanf:"diversity_target"`
	MinTrainSamples      int     `koanf:"min_train_samples"`
	MinTrainBalance      float64 `koanf:"min_train_balance"`
	LowConfidenceBalance float64 `koanf:"low_confidence_balance"`
}

// Remote configures the optional remote classifier.
type Remote struct {
	Enabled   bool          `koanf:"enabled"`
	URL       string        `koanf:"url"`
	APIKey    string        `koanf:"api_key"`
	Timeout   time.Duration `koanf:"timeout"`
	Workers   int           `koanf:"workers"`
	QueueSize int           `koanf:"queue_size"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr      string `koanf:"addr"`
	StaticDir string `koanf:"static_dir"`
}

// Store configures the SQLite database. An empty path selects
// ~/.mudra/mudra.db.
type Store struct {
	Path string `koanf:"path"`
}

// Plugins configures output plugin discovery and execution.
type Plugins struct {
	Dir     string        `koanf:"dir"`
	Timeout time.Duration `koanf:"timeout"`
}

// New returns a Config populated with defaults.
func New() *Config {
	det := detection.DefaultConfig()
	feat := features.DefaultConfig()
	heur := classifier.DefaultHeuristicConfig()
	train := classifier.DefaultTrainingConfig()
	cal := calibration.DefaultConfig()

	landmarks := make([]string, 0, len(det.Landmarks))
	for _, name := range det.Landmarks {
		landmarks = append(landmarks, string(name))
	}

	return &Config{
		Log: Log{Level: "info", Format: "text"},
		Detection: Detection{
			HistoryCapacity: det.HistoryCapacity,
			MinHistory:      det.MinHistory,
			Cooldown:        det.Cooldown,
			NotableVelocity: det.NotableVelocity,
			ConfidenceFloor: det.ConfidenceFloor,
			Landmarks:       landmarks,
		},
		Features: Features{
			WindowSize:             feat.WindowSize,
			MinFrames:              feat.MinFrames,
			ConfidenceFloor:        feat.ConfidenceFloor,
			MinSignificantMovement: feat.MinSignificantMovement,
			PauseThreshold:         feat.PauseThreshold,
			SmoothJitterMax:        feat.SmoothJitterMax,
			DirectionDeadZone:      feat.DirectionDeadZone,
			StartThreshold:         feat.StartThreshold,
			EndThreshold:           feat.EndThreshold,
		},
		Heuristic: Heuristic{
			Threshold:       heur.Threshold,
			MinSpeed:        heur.MinSpeed,
			MaxJitter:       heur.MaxJitter,
			MinAcceleration: heur.MinAcceleration,
			MinDuration:     heur.MinDuration,
			MaxDuration:     heur.MaxDuration,
			MaxFrequency:    heur.MaxFrequency,
			MinSteadiness:   heur.MinSteadiness,
			MinPattern:      heur.MinPattern,
			MinContinuity:   heur.MinContinuity,
			MinMagnitude:    heur.MinMagnitude,
			TremorVeto:      heur.TremorVeto,
			MotionGate:      heur.MotionGate,
		},
		Trainable: Trainable{
			Enabled:          true,
			Threshold:        classifier.DefaultTrainableThreshold,
			Augment:          true,
			AugmentJitter:    classifier.DefaultAugmentJitter,
			MaxClassRatio:    classifier.DefaultMaxClassRatio,
			MaxAugmentFactor: classifier.DefaultMaxAugmentFactor,
		},
		Training: Training{
			Epochs:          train.Epochs,
			BatchSize:       train.BatchSize,
			LearningRate:    train.LearningRate,
			ValidationSplit: train.ValidationSplit,
			Dropout:         train.Dropout,
			Timeout:         train.Timeout,
			Seed:            train.Seed,
		},
		Calibration: Calibration{
			UserID:               "default",
			TargetSamples:        cal.TargetSamples,
			BalanceCeiling:       cal.BalanceCeiling,
			DiversityTarget:      cal.DiversityTarget,
			MinTrainSamples:      cal.MinTrainSamples,
			MinTrainBalance:      cal.MinTrainBalance,
			LowConfidenceBalance: cal.LowConfidenceBalance,
		},
		Remote: Remote{
			Timeout:   80 * time.Millisecond,
			Workers:   2,
			QueueSize: 32,
		},
		Server:  Server{Addr: ":8080"},
		Plugins: Plugins{Timeout: 5 * time.Second},
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch {
	case c.Server.Addr == "":
		return invalid("server.addr must not be empty")
	case c.Features.WindowSize < 2:
		return invalid("features.window_size must be at least 2, got %d", c.Features.WindowSize)
	case c.Features.MinFrames < 2 || c.Features.MinFrames > c.Features.WindowSize:
		return invalid("features.min_frames must be between 2 and window_size, got %d", c.Features.MinFrames)
	case c.Detection.HistoryCapacity < c.Features.WindowSize:
		return invalid("detection.history_capacity (%d) must hold a full window (%d)",
			c.Detection.HistoryCapacity, c.Features.WindowSize)
	case c.Detection.MinHistory < 1 || c.Detection.MinHistory > c.Detection.HistoryCapacity:
		return invalid("detection.min_history must be between 1 and history_capacity, got %d", c.Detection.MinHistory)
	case c.Detection.Cooldown < 0:
		return invalid("detection.cooldown must not be negative")
	case !unit(c.Detection.ConfidenceFloor) || !unit(c.Features.ConfidenceFloor):
		return invalid("confidence floors must be within [0, 1]")
	case c.Features.EndThreshold > c.Features.StartThreshold:
		return invalid("features.end_threshold must not exceed start_threshold")
	case !unit(c.Heuristic.Threshold) || !unit(c.Trainable.Threshold):
		return invalid("decision thresholds must be within [0, 1]")
	case c.Training.Epochs < 1 || c.Training.BatchSize < 1:
		return invalid("training.epochs and training.batch_size must be positive")
	case c.Training.ValidationSplit < 0 || c.Training.ValidationSplit >= 1:
		return invalid("training.validation_split must be within [0, 1)")
	case c.Training.Dropout < 0 || c.Training.Dropout >= 1:
		return invalid("training.dropout must be within [0, 1)")
	case c.Trainable.MaxClassRatio < 1:
		return invalid("trainable.max_class_ratio must be at least 1")
	case c.Calibration.UserID == "":
		return invalid("calibration.user_id must not be empty")
	case c.Remote.Enabled && c.Remote.URL == "":
		return invalid("remote.url is required when remote.enabled is set")
	}

	for _, name := range c.Detection.Landmarks {
		if !pose.LandmarkName(name).Valid() {
			return invalid("detection.landmarks: unknown landmark %q", name)
		}
	}
	return nil
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

// DetectionConfig converts the detection and features sections.
func (c *Config) DetectionConfig() detection.Config {
	landmarks := make([]pose.LandmarkName, 0, len(c.Detection.Landmarks))
	for _, name := range c.Detection.Landmarks {
		landmarks = append(landmarks, pose.LandmarkName(name))
	}
	return detection.Config{
		HistoryCapacity: c.Detection.HistoryCapacity,
		MinHistory:      c.Detection.MinHistory,
		Cooldown:        c.Detection.Cooldown,
		NotableVelocity: c.Detection.NotableVelocity,
		ConfidenceFloor: c.Detection.ConfidenceFloor,
		Landmarks:       landmarks,
		Features:        c.FeaturesConfig(),
	}
}

// FeaturesConfig converts the features section.
func (c *Config) FeaturesConfig() features.Config {
	f := c.Features
	return features.Config{
		WindowSize:             f.WindowSize,
		MinFrames:              f.MinFrames,
		ConfidenceFloor:        f.ConfidenceFloor,
		MinSignificantMovement: f.MinSignificantMovement,
		PauseThreshold:         f.PauseThreshold,
		SmoothJitterMax:        f.SmoothJitterMax,
		DirectionDeadZone:      f.DirectionDeadZone,
		StartThreshold:         f.StartThreshold,
		EndThreshold:           f.EndThreshold,
	}
}

// HeuristicConfig converts the heuristic section. Indicator weights always
// take their defaults.
func (c *Config) HeuristicConfig() classifier.HeuristicConfig {
	h := c.Heuristic
	return classifier.HeuristicConfig{
		Threshold:       h.Threshold,
		MinSpeed:        h.MinSpeed,
		MaxJitter:       h.MaxJitter,
		MinAcceleration: h.MinAcceleration,
		MinDuration:     h.MinDuration,
		MaxDuration:     h.MaxDuration,
		MaxFrequency:    h.MaxFrequency,
		MinSteadiness:   h.MinSteadiness,
		MinPattern:      h.MinPattern,
		MinContinuity:   h.MinContinuity,
		MinMagnitude:    h.MinMagnitude,
		TremorVeto:      h.TremorVeto,
		MotionGate:      h.MotionGate,
		Weights:         classifier.DefaultWeights(),
	}
}

// TrainingConfig converts the training section. The minimum sample count is
// shared with the calibration training gate.
func (c *Config) TrainingConfig() classifier.TrainingConfig {
	t := c.Training
	return classifier.TrainingConfig{
		Epochs:          t.Epochs,
		BatchSize:       t.BatchSize,
		LearningRate:    t.LearningRate,
		ValidationSplit: t.ValidationSplit,
		Dropout:         t.Dropout,
		MinSamples:      c.Calibration.MinTrainSamples,
		Timeout:         t.Timeout,
		Seed:            t.Seed,
	}
}

// Augmenter returns the configured class-balancing strategy.
func (c *Config) Augmenter() classifier.Augmenter {
	if !c.Trainable.Augment {
		return classifier.NoAugmenter{}
	}
	return classifier.JitterAugmenter{
		Jitter:    c.Trainable.AugmentJitter,
		MaxRatio:  c.Trainable.MaxClassRatio,
		MaxFactor: c.Trainable.MaxAugmentFactor,
	}
}

// CalibrationConfig converts the calibration section on top of the package
// defaults.
func (c *Config) CalibrationConfig() calibration.Config {
	cal := calibration.DefaultConfig()
	cal.TargetSamples = c.Calibration.TargetSamples
	cal.BalanceCeiling = c.Calibration.BalanceCeiling
	cal.DiversityTarget = c.Calibration.DiversityTarget
	cal.MinTrainSamples = c.Calibration.MinTrainSamples
	cal.MinTrainBalance = c.Calibration.MinTrainBalance
	cal.LowConfidenceBalance = c.Calibration.LowConfidenceBalance
	return cal
}

// Capabilities resolves the optional classification paths requested by the
// configuration.
func (c *Config) Capabilities() detection.Capabilities {
	return detection.Capabilities{
		Remote:    c.Remote.Enabled,
		Trainable: c.Trainable.Enabled,
	}
}
