package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpr-service/internal/detection"
	"lpr-service/internal/inference"
	"lpr-service/internal/metrics"
	"lpr-service/internal/registry"
)

type fakeSource struct {
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Snapshot(ctx context.Context) (Frame, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Frame{}, f.err
	}
	return Frame{Data: []byte("jpeg"), ContentType: "image/jpeg", CapturedAt: time.Now()}, nil
}

type blockingDetector struct {
	release chan struct{}
	calls   atomic.Int32
}

func newBlockingDetector() *blockingDetector {
	return &blockingDetector{release: make(chan struct{})}
}

func (d *blockingDetector) PredictFrame(ctx context.Context, file inference.Upload) (*inference.FrameResponse, error) {
	d.calls.Add(1)
	<-d.release
	return &inference.FrameResponse{Detections: []detection.RawDetection{{"plate": "B 1970 SSW"}}}, nil
}

type instantDetector struct{}

func (instantDetector) PredictFrame(ctx context.Context, file inference.Upload) (*inference.FrameResponse, error) {
	return &inference.FrameResponse{Detections: []detection.RawDetection{{"plate": "AB 1"}}}, nil
}

type recordingIngester struct {
	mu      sync.Mutex
	batches [][]detection.RawDetection
}

func (r *recordingIngester) IngestDetections(source string, raws []detection.RawDetection) registry.SubmitResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, raws)
	return registry.SubmitResult{Inserted: len(raws)}
}

func (r *recordingIngester) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func newTestSession(src FrameSource, det Detector, ing Ingester) *Session {
	return NewSession(src, det, ing, 5*time.Millisecond, metrics.New(nil), zerolog.Nop())
}

func TestSessionSkipsTicksWhileFrameInFlight(t *testing.T) {
	det := newBlockingDetector()
	ing := &recordingIngester{}
	s := newTestSession(&fakeSource{}, det, ing)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return det.calls.Load() == 1 }, time.Second, time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), det.calls.Load())
	assert.Positive(t, s.Stats().Skipped)

	close(det.release)
	require.Eventually(t, func() bool { return ing.count() >= 1 }, time.Second, time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	assert.Positive(t, s.Stats().Submitted)
}

func TestSessionDiscardsResultAfterStop(t *testing.T) {
	det := newBlockingDetector()
	ing := &recordingIngester{}
	s := newTestSession(&fakeSource{}, det, ing)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return det.calls.Load() == 1 }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	require.Eventually(t, func() bool { return !s.Running() }, time.Second, time.Millisecond)

	close(det.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	assert.Equal(t, 0, ing.count())
	assert.Equal(t, uint64(1), s.Stats().Discarded)
}

func TestSessionContinuesAfterFailures(t *testing.T) {
	src := &fakeSource{err: errors.New("camera offline")}
	ing := &recordingIngester{}
	s := newTestSession(src, instantDetector{}, ing)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Stats().Failed >= 3 }, time.Second, time.Millisecond)
	s.Stop()

	assert.Equal(t, 0, ing.count())
	assert.GreaterOrEqual(t, src.calls.Load(), int32(3))
}

func TestSessionStartStop(t *testing.T) {
	ing := &recordingIngester{}
	s := newTestSession(&fakeSource{}, instantDetector{}, ing)

	s.Stop()

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)
	assert.True(t, s.Running())
	require.Eventually(t, func() bool { return ing.count() >= 2 }, time.Second, time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestSessionEndsWithParentContext(t *testing.T) {
	s := newTestSession(&fakeSource{}, instantDetector{}, &recordingIngester{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return !s.Running() }, time.Second, time.Millisecond)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
