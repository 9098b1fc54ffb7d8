package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/logger"
)

// TrainingConfig holds the training loop parameters.
type TrainingConfig struct {
	Epochs          int
	BatchSize       int
	LearningRate    float64
	ValidationSplit float64 // fraction held out for validation
	Dropout         float64 // hidden unit drop probability during training
	MinSamples      int
	Timeout         time.Duration
	Seed            uint64
}

// DefaultTrainingConfig returns a TrainingConfig with sensible default values.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Epochs:          50,
		BatchSize:       16,
		LearningRate:    0.01,
		ValidationSplit: 0.2,
		Dropout:         0.2,
		MinSamples:      20,
		Timeout:         2 * time.Minute,
		Seed:            42,
	}
}

// TrainingError reports why a training run failed. The previous model is
// always left in place.
type TrainingError struct {
	Reason string
	Err    error
}

func (e *TrainingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("training failed: %s: %v", e.Reason, e.Err)
	}
	return "training failed: " + e.Reason
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// TrainingResult summarizes a successful training run.
type TrainingResult struct {
	ModelID            string  `json:"modelId"`
	Accuracy           float64 `json:"accuracy"`           // on the original, unaugmented set
	ValidationAccuracy float64 `json:"validationAccuracy"` // on the held-out split
	FinalLoss          float64 `json:"finalLoss"`
	Epochs             int     `json:"epochs"`
	Samples            int     `json:"samples"`
	Synthetic          int     `json:"synthetic"`
}

// Model is a trained network and its metadata. Models are immutable once
// published.
type Model struct {
	ID                 string
	Network            *Network
	Accuracy           float64
	ValidationAccuracy float64
	TrainedAt          time.Time
}

// Option configures a Trainable.
type Option func(*Trainable)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Trainable) {
		t.log = l
	}
}

// WithAugmenter replaces the class-balancing strategy.
func WithAugmenter(a Augmenter) Option {
	return func(t *Trainable) {
		t.augmenter = a
	}
}

// WithThreshold sets the decision threshold.
func WithThreshold(threshold float64) Option {
	return func(t *Trainable) {
		t.threshold = threshold
	}
}

// WithClock overrides the time source used for model timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Trainable) {
		t.now = now
	}
}

// Trainable is a per-user neural classifier. Classification is lock-free and
// may run concurrently with training; a new model is published atomically
// only after training succeeds.
type Trainable struct {
	config    TrainingConfig
	threshold float64
	augmenter Augmenter
	log       logger.Logger
	now       func() time.Time

	model    atomic.Pointer[Model]
	training atomic.Bool
}

// NewTrainable creates an untrained classifier.
func NewTrainable(config TrainingConfig, opts ...Option) *Trainable {
	t := &Trainable{
		config:    config,
		threshold: DefaultTrainableThreshold,
		augmenter: NewJitterAugmenter(),
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.config.BatchSize <= 0 {
		t.config.BatchSize = 1
	}
	return t
}

// Trained reports whether a model is loaded.
func (t *Trainable) Trained() bool {
	return t.model.Load() != nil
}

// Model returns the current model, or nil.
func (t *Trainable) Model() *Model {
	return t.model.Load()
}

// SetModel publishes m as the current model. A nil m clears the model.
func (t *Trainable) SetModel(m *Model) {
	t.model.Store(m)
}

// Training reports whether a training task is running.
func (t *Trainable) Training() bool {
	return t.training.Load()
}

// Classify runs the current model on f. It reports false when untrained.
func (t *Trainable) Classify(f features.MovementFeatures) (Verdict, bool) {
	m := t.model.Load()
	if m == nil {
		return Verdict{}, false
	}
	p := m.Network.Predict(f.Vector())
	return newVerdict(p, t.threshold, SourceTrainable), true
}

// Train trains a new model on examples and publishes it on success. It
// returns ErrTrainingInProgress if another run is active.
func (t *Trainable) Train(ctx context.Context, examples []Example, progress ProgressFunc) (TrainingResult, error) {
	if !t.training.CompareAndSwap(false, true) {
		return TrainingResult{}, ErrTrainingInProgress
	}
	defer t.training.Store(false)
	return t.train(ctx, examples, progress)
}

func (t *Trainable) train(ctx context.Context, examples []Example, progress ProgressFunc) (TrainingResult, error) {
	cfg := t.config
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if progress == nil {
		progress = func(float64) {}
	}

	pos, neg := classCounts(examples)
	if len(examples) < cfg.MinSamples || pos == 0 || neg == 0 {
		return TrainingResult{}, fmt.Errorf("%w: %d samples (%d intentional, %d unintentional)", ErrInsufficientData, len(examples), pos, neg)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	balanced := t.augmenter.Balance(examples, rng)
	rng.Shuffle(len(balanced), func(i, j int) {
		balanced[i], balanced[j] = balanced[j], balanced[i]
	})

	nVal := int(float64(len(balanced)) * cfg.ValidationSplit)
	if nVal >= len(balanced) {
		nVal = 0
	}
	validation := balanced[:nVal]
	trainSet := balanced[nVal:]

	xs := make([][]float64, len(trainSet))
	ys := make([]float64, len(trainSet))
	for i, e := range trainSet {
		xs[i] = e.Features.Vector()
		ys[i] = label(e.Intentional)
	}

	t.log.Info(ctx, "training started",
		logger.Int("samples", len(examples)),
		logger.Int("augmented", len(balanced)-len(examples)),
		logger.Int("validation", nVal),
		logger.Int("epochs", cfg.Epochs))

	net := NewNetwork(DefaultLayerSizes, rng)
	opt := newAdam(net, cfg.LearningRate)
	grads := newGradients(net)
	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}

	var loss float64
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			reason := "cancelled"
			if errors.Is(err, context.DeadlineExceeded) {
				reason = "timeout"
			}
			return TrainingResult{}, &TrainingError{Reason: reason, Err: err}
		}

		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		total := 0.0
		for start := 0; start < len(order); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(order))
			grads.zero()
			for _, idx := range order[start:end] {
				total += grads.accumulate(net, xs[idx], ys[idx], cfg.Dropout, rng)
			}
			opt.apply(net, grads, end-start)
		}
		loss = total / float64(len(order))

		if math.IsNaN(loss) || math.IsInf(loss, 0) || !net.Valid(features.VectorSize) {
			return TrainingResult{}, &TrainingError{Reason: "diverged", Err: fmt.Errorf("loss %v at epoch %d", loss, epoch+1)}
		}

		progress(float64(epoch+1) / float64(cfg.Epochs))
		t.log.Debug(ctx, "epoch complete", logger.Int("epoch", epoch+1), logger.Float64("loss", loss))
	}

	model := &Model{
		ID:                 uuid.NewString(),
		Network:            net,
		Accuracy:           accuracy(net, examples),
		ValidationAccuracy: accuracy(net, validation),
		TrainedAt:          t.now().UTC(),
	}
	t.model.Store(model)

	t.log.Info(ctx, "training complete",
		logger.String("model_id", model.ID),
		logger.Float64("accuracy", model.Accuracy),
		logger.Float64("validation_accuracy", model.ValidationAccuracy),
		logger.Float64("loss", loss))

	return TrainingResult{
		ModelID:            model.ID,
		Accuracy:           model.Accuracy,
		ValidationAccuracy: model.ValidationAccuracy,
		FinalLoss:          loss,
		Epochs:             cfg.Epochs,
		Samples:            len(balanced),
		Synthetic:          len(balanced) - len(examples),
	}, nil
}

// accuracy is measured at 0.5, independent of the decision threshold.
func accuracy(net *Network, examples []Example) float64 {
	if len(examples) == 0 {
		return 0
	}
	correct := 0
	for _, e := range examples {
		if (net.Predict(e.Features.Vector()) > 0.5) == e.Intentional {
			correct++
		}
	}
	return float64(correct) / float64(len(examples))
}

func label(intentional bool) float64 {
	if intentional {
		return 1
	}
	return 0
}
