package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/veridianhq/veridian-ledger/internal/anchor"
	"github.com/veridianhq/veridian-ledger/internal/ledger"
	"go.uber.org/zap"
)

// SMTPOverride carries per-request SMTP connection details for the escrow
// email backend.
type SMTPOverride struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// BackendOverrides lets the external scheduler supply credentials at
// trigger time instead of service configuration.
type BackendOverrides struct {
	GistToken string        `json:"gist_token"`
	SMTP      *SMTPOverride `json:"smtp"`
}

func (o BackendOverrides) empty() bool {
	return o.GistToken == "" && o.SMTP == nil
}

// SchedulerFactory builds a scheduler with credential overrides applied.
// Wired from main, where backend construction lives.
type SchedulerFactory func(ov BackendOverrides) *anchor.Scheduler

// AnchorHandler exposes the anchoring trigger and the anchor audit query.
type AnchorHandler struct {
	scheduler *anchor.Scheduler
	factory   SchedulerFactory
	store     anchor.RecordStore
	log       ledger.Log
	secret    string
	logger    *zap.Logger
}

// NewAnchorHandler creates an AnchorHandler. secret protects the trigger
// endpoint; an empty secret disables it.
func NewAnchorHandler(scheduler *anchor.Scheduler, store anchor.RecordStore, log ledger.Log, secret string, logger *zap.Logger) *AnchorHandler {
	return &AnchorHandler{
		scheduler: scheduler,
		store:     store,
		log:       log,
		secret:    secret,
		logger:    logger,
	}
}

// SetSchedulerFactory enables per-request backend credential overrides.
func (h *AnchorHandler) SetSchedulerFactory(f SchedulerFactory) { h.factory = f }

// Register mounts the anchor routes on the given router group.
func (h *AnchorHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/anchors")
	{
		a.GET("", h.List)
		a.POST("/run", RequireAnchorSecret(h.secret), h.Run)
	}
}

type runRequest struct {
	// Backends restricts the cycle to the named methods; empty means all.
	Backends []string `json:"backends"`
	BackendOverrides
}

// Run handles POST /anchors/run — one anchoring cycle, invoked by the
// external scheduler.
func (h *AnchorHandler) Run(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var only []anchor.Method
	for _, raw := range req.Backends {
		m := anchor.Method(raw)
		if !m.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown backend: " + raw})
			return
		}
		only = append(only, m)
	}

	scheduler := h.scheduler
	if !req.BackendOverrides.empty() && h.factory != nil {
		scheduler = h.factory(req.BackendOverrides)
	}

	start := time.Now()
	report, err := scheduler.RunCycle(c.Request.Context(), only...)
	ObserveAnchorCycle(time.Since(start))
	if err != nil {
		if errors.Is(err, anchor.ErrCycleFailed) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "report": report})
			return
		}
		h.logger.Error("anchoring cycle error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "anchoring cycle could not run"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// List handles GET /anchors?limit=N — the current head plus the most recent
// anchor records. This is the artifact an external auditor cross-checks the
// stored chain against.
func (h *AnchorHandler) List(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if v > 100 {
			v = 100
		}
		limit = v
	}

	head, err := h.log.Head(c.Request.Context())
	if err != nil {
		h.logger.Error("ledger Head", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query chain head"})
		return
	}

	records, err := h.store.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("anchor Recent", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query anchors"})
		return
	}
	if records == nil {
		records = []*anchor.Record{}
	}

	c.JSON(http.StatusOK, gin.H{"head": head, "anchors": records})
}
