package mlmodel

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"agriloan/internal/artifactstore"
)

const (
	DefaultLargeLoanThreshold = 1_000_000.0
	versionLayout             = "20060102_150405"
)

var (
	// ErrScoring wraps every failure that should trigger the caller's fallback.
	ErrScoring   = errors.New("scoring failed")
	ErrNotLoaded = errors.New("model not loaded")
)

// Recorder receives one observation per scoring attempt.
type Recorder interface {
	RecordPrediction(latency time.Duration, ok bool)
}

// Handle is an immutable loaded artifact. Servers swap whole handles, never
// mutate one in place.
type Handle struct {
	Path     string
	Version  string
	LoadedAt time.Time
	Raw      []byte
	artifact *Artifact
}

type Options struct {
	ModelPath          string
	Timeout            time.Duration
	LargeLoanThreshold float64
	Recorder           Recorder
	Now                func() time.Time
}

type Prediction struct {
	Amount       float64 `json:"predicted_amount_mwk"`
	Confidence   float64 `json:"prediction_confidence"`
	ModelVersion string  `json:"model_version"`
}

type Info struct {
	ModelPath    string     `json:"model_path"`
	ModelVersion string     `json:"model_version,omitempty"`
	ModelLoaded  bool       `json:"model_loaded"`
	FeaturesUsed []string   `json:"features_used"`
	LastLoaded   *time.Time `json:"last_loaded,omitempty"`
}

type Server struct {
	store  artifactstore.Store
	opts   Options
	active atomic.Pointer[Handle]
}

func NewServer(store artifactstore.Store, opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.LargeLoanThreshold <= 0 {
		opts.LargeLoanThreshold = DefaultLargeLoanThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{store: store, opts: opts}
}

// Open reads and decodes an artifact without activating it.
func (s *Server) Open(ctx context.Context, path string) (*Handle, error) {
	raw, err := s.store.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	a, err := DecodeArtifact(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	now := s.opts.Now()
	return &Handle{
		Path:     path,
		Version:  now.Format(versionLayout),
		LoadedAt: now,
		Raw:      raw,
		artifact: a,
	}, nil
}

// Swap activates h and returns the handle it replaced. Calls already running
// finish on the handle they captured.
func (s *Server) Swap(h *Handle) *Handle {
	prev := s.active.Swap(h)
	if h != nil {
		slog.Info("model activated", "path", h.Path, "version", h.Version)
	}
	return prev
}

func (s *Server) Current() *Handle { return s.active.Load() }

// Load opens path and activates it.
func (s *Server) Load(ctx context.Context, path string) error {
	h, err := s.Open(ctx, path)
	if err != nil {
		return err
	}
	s.Swap(h)
	return nil
}

// Predict scores f against the handle active when the call starts.
func (s *Server) Predict(ctx context.Context, f Features) (Prediction, error) {
	if err := f.Validate(); err != nil {
		return Prediction{}, err
	}

	start := time.Now()
	p, err := s.predict(ctx, f)
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordPrediction(time.Since(start), err == nil)
	}
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %w", ErrScoring, err)
	}
	return p, nil
}

func (s *Server) predict(ctx context.Context, f Features) (Prediction, error) {
	h := s.active.Load()
	if h == nil {
		return Prediction{}, ErrNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, errors.Wrap(err, "predict")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	type result struct {
		y   float64
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("artifact panic: %v", r)}
			}
		}()
		y, err := h.artifact.Predict(f)
		done <- result{y: y, err: err}
	}()

	select {
	case <-ctx.Done():
		return Prediction{}, errors.Wrap(ctx.Err(), "predict")
	case r := <-done:
		if r.err != nil {
			return Prediction{}, r.err
		}
		if math.IsNaN(r.y) || math.IsInf(r.y, 0) {
			return Prediction{}, fmt.Errorf("artifact returned %v", r.y)
		}
		amount := math.Max(0, r.y)
		return Prediction{
			Amount:       amount,
			Confidence:   Confidence(f, amount, s.opts.LargeLoanThreshold),
			ModelVersion: h.Version,
		}, nil
	}
}

// Confidence is a fixed function of the inputs and the clamped amount.
func Confidence(f Features, amount, largeLoan float64) float64 {
	c := 0.7
	if f.hasHistory() {
		c = math.Min(0.9, c+0.2)
	}
	if amount > largeLoan {
		c = math.Max(0.5, c-0.1)
	}
	return math.Round(c*100) / 100
}

func (s *Server) Info() Info {
	info := Info{
		ModelPath:    s.opts.ModelPath,
		FeaturesUsed: append([]string(nil), FeatureNames...),
	}
	if h := s.active.Load(); h != nil {
		loaded := h.LoadedAt
		info.ModelPath = h.Path
		info.ModelVersion = h.Version
		info.ModelLoaded = true
		info.LastLoaded = &loaded
	}
	return info
}
