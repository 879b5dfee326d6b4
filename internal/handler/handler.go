// Package handler exposes the snapbook service over HTTP with gin.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"snapbook/internal/auth"
	"snapbook/internal/httpmiddleware"
	"snapbook/internal/metrics"
	"snapbook/internal/model"
	"snapbook/internal/snapbook"
	"snapbook/internal/yearbook"
)

// Service is the part of snapbook.Service the API uses.
type Service interface {
	Register(ctx context.Context, name string) (model.Participant, error)
	Participant(ctx context.Context, id string) (model.Participant, error)
	Participants(ctx context.Context) ([]model.Participant, error)
	RemoveParticipant(ctx context.Context, id string) error
	CapturePhoto(ctx context.Context, participantID, dataURL string) (model.Participant, error)
	PhotoWall(ctx context.Context) ([]model.Participant, error)
	Stats(ctx context.Context) (model.Stats, error)
	Settings(ctx context.Context) (model.Settings, error)
	ToggleSubmissions(ctx context.Context) (model.Settings, error)
	GenerateYearbook(ctx context.Context) (model.Settings, error)
	ResetYearbook(ctx context.Context) (model.Settings, error)
	Quotes(ctx context.Context) ([]model.Quote, error)
	AddQuote(ctx context.Context, text string) (model.Quote, error)
	Yearbook(ctx context.Context) ([]yearbook.Entry, error)
	Slideshow(ctx context.Context) ([]yearbook.Slide, error)
}

// Options configures the router.
type Options struct {
	SigningKey string
	Issuer     string
	SessionTTL time.Duration
	PageSize   int
	Release    bool
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Limiter    httpmiddleware.Limiter
	// Gatherer backs /metrics; the default registry is used when nil.
	Gatherer prometheus.Gatherer
	// Health reports component health for /healthz.
	Health func(ctx context.Context) map[string]bool
}

// Handler serves the HTTP API.
type Handler struct {
	svc  Service
	opts Options
}

// New creates a handler.
func New(svc Service, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = yearbook.DefaultPageSize
	}
	return &Handler{svc: svc, opts: opts}
}

// Router builds the gin engine with middleware and routes.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.opts.Logger, "/healthz", "/metrics"))
	r.Use(h.opts.Metrics.GinMiddleware())
	r.Use(corsMiddleware())
	r.Use(securityHeaders(h.opts.Release))
	if h.opts.Limiter != nil {
		r.Use(httpmiddleware.RateLimit(h.opts.Limiter, h.opts.Logger))
	}

	metricsHandler := promhttp.Handler()
	if h.opts.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{})
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))
	r.GET("/healthz", h.healthz)

	v1 := r.Group("/v1")
	v1.GET("/settings", h.getSettings)
	v1.POST("/participants", h.register)
	v1.GET("/photowall", h.photoWall)
	v1.GET("/yearbook", h.yearbook)
	v1.GET("/slideshow", h.slideshow)

	me := v1.Group("/me", auth.RequireRole(h.opts.SigningKey, h.opts.Issuer, auth.RoleParticipant))
	me.GET("", h.me)
	me.POST("/photos", h.capturePhoto)

	admin := v1.Group("/admin", auth.RequireRole(h.opts.SigningKey, h.opts.Issuer, auth.RoleAdmin))
	admin.GET("/stats", h.stats)
	admin.GET("/participants", h.listParticipants)
	admin.DELETE("/participants/:id", h.removeParticipant)
	admin.POST("/submissions/toggle", h.toggleSubmissions)
	admin.POST("/yearbook/generate", h.generateYearbook)
	admin.POST("/yearbook/reset", h.resetYearbook)
	admin.GET("/quotes", h.listQuotes)
	admin.POST("/quotes", h.addQuote)

	return r
}

// participantView adds the derived submission progress fields.
type participantView struct {
	model.Participant
	PhotoCount  int  `json:"photoCount"`
	IsCompleted bool `json:"isCompleted"`
}

func view(p model.Participant) participantView {
	return participantView{Participant: p, PhotoCount: p.PhotoCount(), IsCompleted: p.IsCompleted()}
}

func views(ps []model.Participant) []participantView {
	out := make([]participantView, len(ps))
	for i, p := range ps {
		out[i] = view(p)
	}
	return out
}

func (h *Handler) healthz(c *gin.Context) {
	components := map[string]bool{}
	if h.opts.Health != nil {
		components = h.opts.Health(c.Request.Context())
	}
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, ok := range components {
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func (h *Handler) getSettings(c *gin.Context) {
	st, err := h.svc.Settings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) register(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.Register(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	tok, err := auth.Issue(p.ID, auth.RoleParticipant, h.opts.Issuer, h.opts.SigningKey, h.opts.SessionTTL)
	if err != nil {
		h.opts.Logger.ErrorContext(c.Request.Context(), "token issue failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"participant": view(p),
		"token":       tok.Value,
		"expires_at":  tok.ExpiresAt.Unix(),
	})
}

func (h *Handler) me(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	p, err := h.svc.Participant(c.Request.Context(), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(p))
}

func (h *Handler) capturePhoto(c *gin.Context) {
	var req struct {
		Data string `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide {\"data\": \"<base64 data URL>\"}"})
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	p, err := h.svc.CapturePhoto(c.Request.Context(), claims.Subject, req.Data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view(p))
}

func (h *Handler) photoWall(c *gin.Context) {
	ps, err := h.svc.PhotoWall(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": views(ps)})
}

func (h *Handler) yearbook(c *gin.Context) {
	size := h.opts.PageSize
	if v := c.Query("page_size"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be a positive integer"})
			return
		}
		size = parsed
	}
	entries, err := h.svc.Yearbook(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":   entries,
		"pages":     yearbook.Paginate(entries, size),
		"page_size": size,
	})
}

func (h *Handler) slideshow(c *gin.Context) {
	slides, err := h.svc.Slideshow(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slides": slides})
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) listParticipants(c *gin.Context) {
	ps, err := h.svc.Participants(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": views(ps)})
}

func (h *Handler) removeParticipant(c *gin.Context) {
	if err := h.svc.RemoveParticipant(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) toggleSubmissions(c *gin.Context) {
	h.settingsAction(c, h.svc.ToggleSubmissions)
}

func (h *Handler) generateYearbook(c *gin.Context) {
	h.settingsAction(c, h.svc.GenerateYearbook)
}

func (h *Handler) resetYearbook(c *gin.Context) {
	h.settingsAction(c, h.svc.ResetYearbook)
}

func (h *Handler) settingsAction(c *gin.Context, fn func(context.Context) (model.Settings, error)) {
	st, err := fn(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) listQuotes(c *gin.Context) {
	qs, err := h.svc.Quotes(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": qs})
}

func (h *Handler) addQuote(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, err := h.svc.AddQuote(c.Request.Context(), req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// fail maps service errors to HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, snapbook.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, snapbook.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, snapbook.ErrSubmissionsClosed), errors.Is(err, snapbook.ErrYearbookNotReady):
		status = http.StatusForbidden
	case errors.Is(err, snapbook.ErrPhotoLimit):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.opts.Logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
