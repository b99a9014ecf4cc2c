package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"catalogsync/internal/database"
	"catalogsync/internal/logger"
	"catalogsync/internal/models"
	"catalogsync/internal/syncer"
)

// RunFunc runs one sync in the given mode. An empty mode means the configured one.
type RunFunc func(ctx context.Context, mode syncer.Mode) (*syncer.Summary, error)

type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
	GetRun(ctx context.Context, id string) (*models.SyncRun, error)
}

// SyncHandler starts background runs and serves their history. At most one
// run is in flight per process.
type SyncHandler struct {
	run     RunFunc
	history RunHistory
	logger  *logger.Logger

	// ctx outlives requests so a run continues after its trigger returns
	ctx  context.Context
	done chan struct{}

	mu      sync.Mutex
	running bool
	last    *syncer.Summary
	lastErr error
}

// NewSyncHandler returns a handler whose runs use ctx. history may be nil when
// no database is configured.
func NewSyncHandler(ctx context.Context, run RunFunc, history RunHistory, logger *logger.Logger) *SyncHandler {
	return &SyncHandler{
		run:     run,
		history: history,
		logger:  logger,
		ctx:     ctx,
	}
}

// Trigger starts a run in the background.
func (h *SyncHandler) Trigger(c *gin.Context) {
	var request struct {
		Mode string `json:"mode"`
	}
	// Chunked bodies report ContentLength -1, so presence is judged by Body.
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	mode, err := syncer.ParseMode(request.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "A sync is already in progress"})
		return
	}
	h.running = true
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	go func() {
		defer close(done)
		summary, err := h.run(h.ctx, mode)
		if err != nil {
			h.logger.Error("Sync triggered over HTTP failed: %v", err)
		}

		h.mu.Lock()
		h.running = false
		h.last = summary
		h.lastErr = err
		h.mu.Unlock()
	}()

	h.logger.Info("Sync started over HTTP (mode %q)", mode)
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Sync started",
		"mode":    mode,
	})
}

// Status reports whether a run is in flight and the outcome of the last one.
func (h *SyncHandler) Status(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	response := gin.H{"running": h.running}
	if h.last != nil {
		response["last"] = h.last.Counters()
	}
	if h.lastErr != nil {
		response["last_error"] = h.lastErr.Error()
	}
	c.JSON(http.StatusOK, response)
}

// Wait blocks until the current background run, if any, has finished.
func (h *SyncHandler) Wait() {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (h *SyncHandler) ListRuns(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run history is not configured"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit > database.MaxListLimit {
		limit = database.MaxListLimit
	}
	runs, err := h.history.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list sync runs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs})
}

func (h *SyncHandler) GetRun(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run history is not configured"})
		return
	}

	run, err := h.history.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sync run not found"})
			return
		}
		h.logger.Error("Failed to fetch sync run: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync run"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}
