package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"lpr-service/internal/capture"
	"lpr-service/internal/detection"
	"lpr-service/internal/domain/plate"
	"lpr-service/internal/export"
	"lpr-service/internal/inference"
	"lpr-service/internal/metrics"
	"lpr-service/internal/registry"
	"lpr-service/internal/repository"
	"lpr-service/internal/storage"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUpstream      = errors.New("upstream inference failed")
	ErrNotConfigured = errors.New("not configured")
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	recentPlatesLimit = 50
)

type Inference interface {
	PredictImage(ctx context.Context, file inference.Upload) (*inference.ImageResponse, error)
	PredictVideo(ctx context.Context, file inference.Upload) (*inference.VideoResponse, error)
	PredictFrame(ctx context.Context, file inference.Upload) (*inference.FrameResponse, error)
	Ping(ctx context.Context) error
}

type PlateStore interface {
	SyncPlates(ctx context.Context, rows []repository.SyncRow) (uuid.UUID, int, error)
	ListRecent(ctx context.Context, limit int) ([]repository.Plate, error)
	ListDetectedBetween(ctx context.Context, from, to time.Time) ([]repository.Plate, error)
	Count(ctx context.Context) (int64, error)
}

type Archiver interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type PlateService struct {
	registry   *registry.Registry
	normalizer *detection.Normalizer
	inference  Inference
	store      PlateStore
	dbPing     func(ctx context.Context) error
	archive    Archiver
	metrics    *metrics.Metrics
	loc        *time.Location
	log        zerolog.Logger

	live    *capture.Session
	liveCtx context.Context
}

type Deps struct {
	Registry   *registry.Registry
	Normalizer *detection.Normalizer
	Inference  Inference
	Store      PlateStore
	DBPing     func(ctx context.Context) error
	Archive    Archiver
	Metrics    *metrics.Metrics
	Location   *time.Location
}

func NewPlateService(deps Deps, log zerolog.Logger) *PlateService {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(deps.Registry.Len)
	}
	return &PlateService{
		registry:   deps.Registry,
		normalizer: deps.Normalizer,
		inference:  deps.Inference,
		store:      deps.Store,
		dbPing:     deps.DBPing,
		archive:    deps.Archive,
		metrics:    m,
		loc:        loc,
		log:        log,
	}
}

// AttachLive wires the live capture session. ctx bounds every run started
// through StartLive.
func (s *PlateService) AttachLive(ctx context.Context, session *capture.Session) {
	s.liveCtx = ctx
	s.live = session
}

// IngestDetections normalizes one source batch and folds it into the registry.
func (s *PlateService) IngestDetections(source string, raws []detection.RawDetection) registry.SubmitResult {
	_, res := s.ingest(source, raws)
	return res
}

func (s *PlateService) ingest(source string, raws []detection.RawDetection) ([]plate.Record, registry.SubmitResult) {
	records, accepted := s.normalizer.NormalizeAll(raws)

	s.metrics.DetectionsAccepted.WithLabelValues(source).Add(float64(accepted))
	s.metrics.DetectionsRejected.WithLabelValues(source).Add(float64(len(raws) - accepted))

	res := s.registry.SubmitBatch(records)
	s.metrics.RegistryInserted.Add(float64(res.Inserted))
	s.metrics.RegistryUpgraded.Add(float64(res.Upgraded))

	if res.Inserted > 0 || res.Upgraded > 0 {
		s.log.Info().
			Str("source", source).
			Int("detections", len(raws)).
			Int("inserted", res.Inserted).
			Int("upgraded", res.Upgraded).
			Int("registry_size", s.registry.Len()).
			Msg("registry updated")
	} else {
		s.log.Debug().
			Str("source", source).
			Int("detections", len(raws)).
			Int("records", len(records)).
			Msg("no new plate information")
	}
	return records, res
}

type ImageResult struct {
	Detections       int                   `json:"detections"`
	Records          []plate.Record        `json:"records"`
	Registry         registry.SubmitResult `json:"registry"`
	AnnotatedWebpB64 string                `json:"annotated_webp_b64,omitempty"`
	ArchiveURL       string                `json:"archive_url,omitempty"`
}

func (s *PlateService) ProcessImage(ctx context.Context, file inference.Upload) (*ImageResult, error) {
	if len(file.Data) == 0 {
		return nil, fmt.Errorf("%w: image file is empty", ErrInvalidInput)
	}

	start := time.Now()
	resp, err := s.inference.PredictImage(ctx, file)
	s.metrics.ObserveInference(metrics.SourceImage, start)
	if err != nil {
		s.log.Error().Err(err).Str("filename", file.Filename).Msg("image prediction failed")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	records, res := s.ingest(metrics.SourceImage, resp.Detections)

	return &ImageResult{
		Detections:       len(resp.Detections),
		Records:          records,
		Registry:         res,
		AnnotatedWebpB64: resp.AnnotatedWebpB64,
		ArchiveURL:       s.archiveUpload(ctx, metrics.SourceImage, file),
	}, nil
}

type VideoResult struct {
	Frames      []inference.VideoFrame `json:"frames"`
	UniqueCount int                    `json:"unique_count"`
	Records     []plate.Record         `json:"records"`
	Registry    registry.SubmitResult  `json:"registry"`
	ArchiveURL  string                 `json:"archive_url,omitempty"`
}

func (s *PlateService) ProcessVideo(ctx context.Context, file inference.Upload) (*VideoResult, error) {
	if len(file.Data) == 0 {
		return nil, fmt.Errorf("%w: video file is empty", ErrInvalidInput)
	}

	start := time.Now()
	resp, err := s.inference.PredictVideo(ctx, file)
	s.metrics.ObserveInference(metrics.SourceVideo, start)
	if err != nil {
		s.log.Error().Err(err).Str("filename", file.Filename).Msg("video prediction failed")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	records, res := s.ingest(metrics.SourceVideo, resp.AllDetections())

	result := &VideoResult{
		Frames:     resp.Frames,
		Records:    records,
		Registry:   res,
		ArchiveURL: s.archiveUpload(ctx, metrics.SourceVideo, file),
	}
	if resp.Summary != nil {
		result.UniqueCount = resp.Summary.UniqueCount
	}
	return result, nil
}

type FrameResult struct {
	Detections int                   `json:"detections"`
	Records    []plate.Record        `json:"records"`
	Registry   registry.SubmitResult `json:"registry"`
}

// ProcessFrame handles a single still pushed by a client-side camera.
func (s *PlateService) ProcessFrame(ctx context.Context, file inference.Upload) (*FrameResult, error) {
	if len(file.Data) == 0 {
		return nil, fmt.Errorf("%w: frame is empty", ErrInvalidInput)
	}

	start := time.Now()
	resp, err := s.inference.PredictFrame(ctx, file)
	s.metrics.ObserveInference(metrics.SourceLive, start)
	if err != nil {
		s.log.Error().Err(err).Msg("frame prediction failed")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	records, res := s.ingest(metrics.SourceLive, resp.Detections)
	return &FrameResult{Detections: len(resp.Detections), Records: records, Registry: res}, nil
}

func (s *PlateService) archiveUpload(ctx context.Context, kind string, file inference.Upload) string {
	if s.archive == nil {
		return ""
	}
	key := storage.ObjectKey(kind, time.Now(), file.Filename)
	url, err := s.archive.Upload(ctx, key, file.Data, file.ContentType)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to archive upload")
		return ""
	}
	return url
}

// Plates returns registry records matching query; an empty query lists all.
func (s *PlateService) Plates(query string) []plate.Record {
	return s.registry.Query(query)
}

func (s *PlateService) ClearRegistry() int {
	n := s.registry.Len()
	s.registry.Clear()
	s.log.Info().Int("cleared", n).Msg("registry cleared")
	return n
}

func (s *PlateService) ExportXLSX() (*bytes.Buffer, error) {
	return export.PlatesXLSX(s.registry.Snapshot(), s.loc)
}

type SyncResult struct {
	BatchID uuid.UUID `json:"batch_id"`
	Synced  int       `json:"synced"`
}

// SyncRegistry exports the current registry snapshot to the database. The
// registry itself is never modified.
func (s *PlateService) SyncRegistry(ctx context.Context) (*SyncResult, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: database", ErrNotConfigured)
	}

	snapshot := s.registry.Snapshot()
	rows := make([]repository.SyncRow, 0, len(snapshot))
	for _, rec := range snapshot {
		rows = append(rows, repository.SyncRow{
			PlateNumber: rec.PlateNumber,
			ExpiryToken: rec.ExpiryToken,
			ObservedAt:  rec.ObservedAt,
		})
	}

	batchID, n, err := s.store.SyncPlates(ctx, rows)
	if err != nil {
		s.log.Error().Err(err).Int("rows", len(rows)).Msg("failed to sync plates")
		return nil, fmt.Errorf("sync plates: %w", err)
	}
	s.metrics.PlatesSynced.Add(float64(n))

	s.log.Info().
		Str("batch_id", batchID.String()).
		Int("synced", n).
		Msg("registry synced to database")

	return &SyncResult{BatchID: batchID, Synced: n}, nil
}

func (s *PlateService) RecentPlates(ctx context.Context) ([]repository.Plate, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: database", ErrNotConfigured)
	}
	plates, err := s.store.ListRecent(ctx, recentPlatesLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent plates: %w", err)
	}
	return plates, nil
}

// TodayPlates lists plates detected since midnight in the service timezone.
func (s *PlateService) TodayPlates(ctx context.Context, now time.Time) ([]repository.Plate, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: database", ErrNotConfigured)
	}
	local := now.In(s.loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 0, 1)

	plates, err := s.store.ListDetectedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list today's plates: %w", err)
	}
	return plates, nil
}

func (s *PlateService) CountPlates(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, fmt.Errorf("%w: database", ErrNotConfigured)
	}
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count plates: %w", err)
	}
	return count, nil
}

func (s *PlateService) DatabaseStatus(ctx context.Context) string {
	if s.dbPing == nil {
		return StatusOffline
	}
	if err := s.dbPing(ctx); err != nil {
		s.log.Warn().Err(err).Msg("database status check failed")
		return StatusOffline
	}
	return StatusOnline
}

func (s *PlateService) ModelStatus(ctx context.Context) string {
	if err := s.inference.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("model status check failed")
		return StatusOffline
	}
	return StatusOnline
}

type Status struct {
	Database     string        `json:"database"`
	Model        string        `json:"model"`
	RegistrySize int           `json:"registry_size"`
	Live         capture.Stats `json:"live"`
}

// Status probes the database and the model backend concurrently.
func (s *PlateService) Status(ctx context.Context) Status {
	st := Status{RegistrySize: s.registry.Len(), Live: s.LiveStats()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st.Database = s.DatabaseStatus(gctx)
		return nil
	})
	g.Go(func() error {
		st.Model = s.ModelStatus(gctx)
		return nil
	})
	_ = g.Wait()

	return st
}

func (s *PlateService) StartLive() error {
	if s.live == nil {
		return fmt.Errorf("%w: camera", ErrNotConfigured)
	}
	ctx := s.liveCtx
	if ctx == nil {
		ctx = context.Background()
	}
	return s.live.Start(ctx)
}

func (s *PlateService) StopLive() {
	if s.live != nil {
		s.live.Stop()
	}
}

func (s *PlateService) LiveStats() capture.Stats {
	if s.live == nil {
		return capture.Stats{}
	}
	return s.live.Stats()
}
