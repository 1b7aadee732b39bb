package handler

import (
	"net/http"
	"time"

	"github.com/erp/erli-connector/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Pinger checks a backing store
type Pinger interface {
	Ping() error
}

// SchedulerState reports whether the background scheduler runs
type SchedulerState interface {
	IsRunning() bool
}

// SystemHandler handles the health endpoint
type SystemHandler struct {
	BaseHandler
	db        Pinger
	scheduler SchedulerState
	startTime time.Time
	now       func() time.Time
}

// NewSystemHandler creates a new SystemHandler. scheduler may be nil when
// background runs are disabled.
func NewSystemHandler(db Pinger, scheduler SchedulerState) *SystemHandler {
	return &SystemHandler{
		db:        db,
		scheduler: scheduler,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Health handles GET /health. The service is unhealthy when the database
// does not answer; a stopped scheduler is only reported.
func (h *SystemHandler) Health(c *gin.Context) {
	now := h.now()
	resp := dto.HealthResponse{
		Status:    "healthy",
		Database:  "connected",
		Scheduler: "disabled",
		Time:      now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(h.startTime).Round(time.Second).String(),
	}
	if h.scheduler != nil {
		resp.Scheduler = "stopped"
		if h.scheduler.IsRunning() {
			resp.Scheduler = "running"
		}
	}

	status := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			resp.Status = "unhealthy"
			resp.Database = "disconnected"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}
