package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lpr-service/internal/capture"
	"lpr-service/internal/http/middleware"
	"lpr-service/internal/inference"
	"lpr-service/internal/service"
)

const (
	maxImageBytes = 20 << 20
	maxVideoBytes = 512 << 20

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Handler struct {
	plateService *service.PlateService
	log          zerolog.Logger
}

func NewHandler(plateService *service.PlateService, log zerolog.Logger) *Handler {
	return &Handler{
		plateService: plateService,
		log:          log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware ...gin.HandlerFunc) {
	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.POST("/predict/image", h.predictImage)
		public.POST("/predict/video", h.predictVideo)
		public.POST("/predict/frame", h.predictFrame)

		public.GET("/plates", h.listPlates)
		public.GET("/plates/export", h.exportPlates)

		public.GET("/db/plates", h.listStoredPlates)
		public.GET("/db/plates/today", h.listTodayPlates)
		public.GET("/db/plates/count", h.countStoredPlates)

		public.GET("/status", h.status)
		public.GET("/status/database", h.databaseStatus)
		public.GET("/status/model", h.modelStatus)

		public.GET("/live/status", h.liveStatus)
	}

	// Protected endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware...)
	{
		protected.DELETE("/plates", h.clearPlates)
		protected.POST("/plates/sync", h.syncPlates)
		protected.POST("/live/start", h.startLive)
		protected.POST("/live/stop", h.stopLive)
	}
}

func (h *Handler) predictImage(c *gin.Context) {
	file, ok := h.readUpload(c, maxImageBytes)
	if !ok {
		return
	}

	result, err := h.plateService.ProcessImage(c.Request.Context(), file)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.log.Info().
		Str("filename", file.Filename).
		Int("detections", result.Detections).
		Int("records", len(result.Records)).
		Msg("image processed")

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) predictVideo(c *gin.Context) {
	file, ok := h.readUpload(c, maxVideoBytes)
	if !ok {
		return
	}

	result, err := h.plateService.ProcessVideo(c.Request.Context(), file)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.log.Info().
		Str("filename", file.Filename).
		Int("frames", len(result.Frames)).
		Int("records", len(result.Records)).
		Msg("video processed")

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) predictFrame(c *gin.Context) {
	file, ok := h.readUpload(c, maxImageBytes)
	if !ok {
		return
	}

	result, err := h.plateService.ProcessFrame(c.Request.Context(), file)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) listPlates(c *gin.Context) {
	records := h.plateService.Plates(c.Query("q"))

	c.JSON(http.StatusOK, gin.H{
		"data":  records,
		"count": len(records),
	})
}

func (h *Handler) exportPlates(c *gin.Context) {
	buf, err := h.plateService.ExportXLSX()
	if err != nil {
		h.handleError(c, err)
		return
	}

	filename := fmt.Sprintf("plates-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) clearPlates(c *gin.Context) {
	cleared := h.plateService.ClearRegistry()

	if principal, ok := middleware.GetPrincipal(c); ok {
		h.log.Info().
			Str("user_id", principal.UserID.String()).
			Int("cleared", cleared).
			Msg("registry cleared by user")
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"cleared": cleared,
	})
}

func (h *Handler) syncPlates(c *gin.Context) {
	result, err := h.plateService.SyncRegistry(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	if principal, ok := middleware.GetPrincipal(c); ok {
		h.log.Info().
			Str("user_id", principal.UserID.String()).
			Str("batch_id", result.BatchID.String()).
			Msg("registry sync requested by user")
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"batch_id": result.BatchID,
		"synced":   result.Synced,
	})
}

func (h *Handler) listStoredPlates(c *gin.Context) {
	plates, err := h.plateService.RecentPlates(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(plates))
}

func (h *Handler) listTodayPlates(c *gin.Context) {
	plates, err := h.plateService.TodayPlates(c.Request.Context(), time.Now())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  plates,
		"count": len(plates),
	})
}

func (h *Handler) countStoredPlates(c *gin.Context) {
	count, err := h.plateService.CountPlates(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.plateService.Status(c.Request.Context()))
}

func (h *Handler) databaseStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": h.plateService.DatabaseStatus(c.Request.Context())})
}

func (h *Handler) modelStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": h.plateService.ModelStatus(c.Request.Context())})
}

func (h *Handler) liveStatus(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.plateService.LiveStats()))
}

func (h *Handler) startLive(c *gin.Context) {
	if err := h.plateService.StartLive(); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(h.plateService.LiveStats()))
}

func (h *Handler) stopLive(c *gin.Context) {
	h.plateService.StopLive()
	c.JSON(http.StatusOK, successResponse(h.plateService.LiveStats()))
}

// readUpload reads the multipart "file" field. It writes the error response
// itself and reports false when the request is unusable.
func (h *Handler) readUpload(c *gin.Context, limit int64) (inference.Upload, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("file field is required"))
		return inference.Upload{}, false
	}
	if fh.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse("file is too large"))
		return inference.Upload{}, false
	}

	f, err := fh.Open()
	if err != nil {
		h.log.Error().Err(err).Str("filename", fh.Filename).Msg("failed to open upload")
		c.JSON(http.StatusBadRequest, errorResponse("invalid upload"))
		return inference.Upload{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		h.log.Error().Err(err).Str("filename", fh.Filename).Msg("failed to read upload")
		c.JSON(http.StatusBadRequest, errorResponse("invalid upload"))
		return inference.Upload{}, false
	}

	return inference.Upload{
		Filename:    fh.Filename,
		ContentType: firstNonEmpty(fh.Header.Get("Content-Type"), "application/octet-stream"),
		Data:        data,
	}, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrUpstream):
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("inference backend failed")
		c.JSON(http.StatusBadGateway, errorResponse("inference backend failed"))
	case errors.Is(err, service.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, errorResponse(err.Error()))
	case errors.Is(err, capture.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
