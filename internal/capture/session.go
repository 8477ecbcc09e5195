package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"lpr-service/internal/detection"
	"lpr-service/internal/inference"
	"lpr-service/internal/metrics"
	"lpr-service/internal/registry"
)

var ErrAlreadyRunning = errors.New("live capture already running")

// Detector runs plate inference on a single frame.
type Detector interface {
	PredictFrame(ctx context.Context, file inference.Upload) (*inference.FrameResponse, error)
}

// Ingester normalizes detections and folds them into the registry.
type Ingester interface {
	IngestDetections(source string, raws []detection.RawDetection) registry.SubmitResult
}

// Stats are cumulative over the lifetime of the session.
type Stats struct {
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Ticks     uint64    `json:"ticks"`
	Skipped   uint64    `json:"skipped"`
	Failed    uint64    `json:"failed"`
	Submitted uint64    `json:"submitted"`
	Discarded uint64    `json:"discarded"`
}

// Session samples the camera on a fixed period and feeds detections to the
// registry. At most one frame is in flight; ticks that find one pending are
// skipped, never queued.
type Session struct {
	source   FrameSource
	detector Detector
	ingester Ingester
	interval time.Duration
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu      sync.Mutex
	current *run

	ticks     atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
	submitted atomic.Uint64
	discarded atomic.Uint64
}

type run struct {
	cancel    context.CancelFunc
	stopped   atomic.Bool
	inflight  atomic.Bool
	startedAt time.Time
	loopDone  chan struct{}
	captures  sync.WaitGroup
}

func NewSession(source FrameSource, detector Detector, ingester Ingester, interval time.Duration, m *metrics.Metrics, log zerolog.Logger) *Session {
	if interval <= 0 {
		interval = time.Second
	}
	return &Session{
		source:   source,
		detector: detector,
		ingester: ingester,
		interval: interval,
		metrics:  m,
		log:      log.With().Str("component", "live_capture").Logger(),
	}
}

// Start launches the capture loop. The loop runs until Stop is called or ctx
// is cancelled.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		cancel:    cancel,
		startedAt: time.Now(),
		loopDone:  make(chan struct{}),
	}
	s.current = r

	go s.loop(runCtx, r)

	s.log.Info().Dur("interval", s.interval).Msg("live capture started")
	return nil
}

// Stop ends the current run and waits for the loop and any in-flight capture
// to return. Results that arrive after Stop are discarded. Stop is a no-op
// when nothing is running.
func (s *Session) Stop() {
	s.mu.Lock()
	r := s.current
	if r == nil {
		s.mu.Unlock()
		return
	}
	r.stopped.Store(true)
	s.current = nil
	s.mu.Unlock()

	r.cancel()
	<-r.loopDone
	r.captures.Wait()

	s.log.Info().Msg("live capture stopped")
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current != nil
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	st := Stats{Running: s.current != nil}
	if s.current != nil {
		st.StartedAt = s.current.startedAt
	}
	s.mu.Unlock()

	st.Ticks = s.ticks.Load()
	st.Skipped = s.skipped.Load()
	st.Failed = s.failed.Load()
	st.Submitted = s.submitted.Load()
	st.Discarded = s.discarded.Load()
	return st
}

func (s *Session) loop(ctx context.Context, r *run) {
	defer func() {
		s.mu.Lock()
		if s.current == r {
			s.current = nil
		}
		s.mu.Unlock()
		close(r.loopDone)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.stopped.Store(true)
			return
		case <-ticker.C:
			if r.stopped.Load() {
				return
			}
			s.ticks.Add(1)
			if !r.inflight.CompareAndSwap(false, true) {
				s.skipped.Add(1)
				s.metrics.LiveTicksSkipped.Inc()
				s.log.Debug().Msg("previous frame still in flight, skipping tick")
				continue
			}
			r.captures.Add(1)
			go func() {
				defer r.captures.Done()
				defer r.inflight.Store(false)
				s.capture(ctx, r)
			}()
		}
	}
}

func (s *Session) capture(ctx context.Context, r *run) {
	frame, err := s.source.Snapshot(ctx)
	if err != nil {
		s.fail(r, err, "failed to capture frame")
		return
	}

	start := time.Now()
	resp, err := s.detector.PredictFrame(ctx, inference.Upload{
		Filename:    "frame.jpg",
		ContentType: frame.ContentType,
		Data:        frame.Data,
	})
	s.metrics.ObserveInference(metrics.SourceLive, start)
	if err != nil {
		s.fail(r, err, "frame prediction failed")
		return
	}

	if r.stopped.Load() {
		s.discarded.Add(1)
		s.log.Debug().Msg("discarding frame result received after stop")
		return
	}

	res := s.ingester.IngestDetections(metrics.SourceLive, resp.Detections)
	s.submitted.Add(uint64(res.Inserted + res.Upgraded + res.Kept))
}

func (s *Session) fail(r *run, err error, msg string) {
	if r.stopped.Load() {
		s.discarded.Add(1)
		return
	}
	s.failed.Add(1)
	s.metrics.LiveTicksFailed.Inc()
	s.log.Error().Err(err).Msg(msg)
}
