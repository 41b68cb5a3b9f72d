// Package api exposes the ledger and anchoring subsystem over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/veridianhq/veridian-ledger/internal/canonical"
	"github.com/veridianhq/veridian-ledger/internal/ledger"
	"go.uber.org/zap"
)

// appendAttempts bounds head-race retries for one append request.
const appendAttempts = 5

// maxRangeRead caps how many events a single range read returns; auditors
// page through larger ranges by resuming from a later sequence.
const maxRangeRead = 1000

// LedgerHandler exposes append and read endpoints for the audit chain.
type LedgerHandler struct {
	log      ledger.Log
	verifier *ledger.Verifier
	logger   *zap.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(log ledger.Log, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{log: log, verifier: ledger.NewVerifier(log), logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/events", h.AppendEvent)
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/events", h.ReadRange)
		l.GET("/events/:seq", h.GetEvent)
		l.GET("/verify", h.Verify)
	}
}

type appendRequest struct {
	ActorType    string          `json:"actor_type" binding:"required"`
	ActorID      string          `json:"actor_id" binding:"required"`
	EntityType   string          `json:"entity_type"`
	EntityID     string          `json:"entity_id"`
	Action       string          `json:"action" binding:"required"`
	Payload      json.RawMessage `json:"payload"`
	ModelVersion *string         `json:"model_version"`
	ReasonCodes  []string        `json:"reason_codes"`
}

// AppendEvent handles POST /events — records one business fact on the chain.
func (h *LedgerHandler) AppendEvent(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := ledger.Proposal{
		ActorType:    ledger.ActorType(req.ActorType),
		ActorID:      req.ActorID,
		EntityType:   req.EntityType,
		EntityID:     req.EntityID,
		Action:       req.Action,
		Payload:      req.Payload,
		ModelVersion: req.ModelVersion,
		ReasonCodes:  req.ReasonCodes,
	}

	e, err := ledger.AppendRetry(c.Request.Context(), h.log, p, appendAttempts)
	if err != nil {
		var serr *canonical.SerializationError
		var sterr *ledger.StorageError
		switch {
		case errors.As(err, &serr):
			c.JSON(http.StatusBadRequest, gin.H{"error": serr.Error()})
		case errors.Is(err, ledger.ErrConflict):
			RecordAppendConflict()
			c.JSON(http.StatusConflict, gin.H{"error": "append contention, retry the request"})
		case errors.As(err, &sterr):
			// A dropped audit write undermines the whole guarantee.
			// Loud, operator-visible failure — never a silent drop.
			h.logger.Error("AUDIT EVENT NOT RECORDED", zap.Error(err),
				zap.String("action", req.Action),
				zap.String("entity_type", req.EntityType),
				zap.String("entity_id", req.EntityID),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger storage unavailable"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	RecordAppend()
	c.JSON(http.StatusCreated, e)
}

// Overview handles GET /ledger — chain length and current head.
func (h *LedgerHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	n, err := h.log.Len(ctx)
	if err != nil {
		h.logger.Error("ledger Len", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	head, err := h.log.Head(ctx)
	if err != nil {
		h.logger.Error("ledger Head", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query chain head"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": n, "head": head})
}

// ReadRange handles GET /ledger/events?from=&to= — an ordered slice of the
// chain, restartable from any sequence.
func (h *LedgerHandler) ReadRange(c *gin.Context) {
	from, ok := seqQuery(c, "from", 0)
	if !ok {
		return
	}
	head, err := h.log.Head(c.Request.Context())
	if err != nil {
		h.logger.Error("ledger Head", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query chain head"})
		return
	}
	to, ok := seqQuery(c, "to", head.Sequence)
	if !ok {
		return
	}
	if to-from+1 > maxRangeRead {
		to = from + maxRangeRead - 1
	}

	events, err := h.log.ReadRange(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Error("ledger ReadRange", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read events"})
		return
	}
	if events == nil {
		events = []*ledger.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "events": events})
}

// GetEvent handles GET /ledger/events/:seq.
func (h *LedgerHandler) GetEvent(c *gin.Context) {
	seq, err := strconv.ParseInt(c.Param("seq"), 10, 64)
	if err != nil || seq < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seq must be a non-negative integer"})
		return
	}

	e, err := h.log.Get(c.Request.Context(), seq)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.logger.Error("ledger Get", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read event"})
		return
	}
	c.JSON(http.StatusOK, e)
}

// Verify handles GET /ledger/verify?from=&to= — recomputes hashes and links
// over the range. The response distinguishes an empty ledger ("no events")
// from a populated one that fails verification.
func (h *LedgerHandler) Verify(c *gin.Context) {
	ctx := c.Request.Context()

	n, err := h.log.Len(ctx)
	if err != nil {
		h.logger.Error("ledger Len", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	if n == 0 {
		c.JSON(http.StatusOK, gin.H{"events": 0, "valid": true, "checked": 0})
		return
	}

	from, ok := seqQuery(c, "from", 0)
	if !ok {
		return
	}
	to, ok := seqQuery(c, "to", n-1)
	if !ok {
		return
	}
	if to > n-1 {
		to = n - 1
	}
	if from > to {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from is beyond the end of the chain"})
		return
	}

	res, err := h.verifier.Verify(ctx, from, to)
	if err != nil {
		h.logger.Error("ledger verify", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification could not run"})
		return
	}

	RecordVerify(res.Valid)
	if !res.Valid {
		// Tampering evidence is a distinct, higher-severity condition.
		h.logger.Error("LEDGER INTEGRITY VIOLATION",
			zap.Int64("first_broken_sequence", res.FirstBrokenSequence),
			zap.String("reason", string(res.Reason)),
		)
	}

	c.JSON(http.StatusOK, gin.H{
		"events":                n,
		"valid":                 res.Valid,
		"checked":               res.Checked,
		"first_broken_sequence": res.FirstBrokenSequence,
		"reason":                res.Reason,
	})
}

// seqQuery parses a non-negative sequence query parameter, falling back to
// def when absent. On a malformed value it writes a 400 and returns false.
func seqQuery(c *gin.Context, name string, def int64) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
		return 0, false
	}
	return v, true
}
