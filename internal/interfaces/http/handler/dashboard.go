package handler

import (
	"context"

	appintegration "github.com/erp/erli-connector/internal/application/integration"
	"github.com/erp/erli-connector/internal/infrastructure/scheduler"
	"github.com/erp/erli-connector/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// recentRuns is the number of scheduler runs shown on the dashboard
const recentRuns = 10

// DashboardReporter builds the connector status report
type DashboardReporter interface {
	Report(ctx context.Context) (*appintegration.DashboardReport, error)
}

// RunHistory exposes the latest scheduler runs
type RunHistory interface {
	History(limit int) []scheduler.Run
}

// DashboardHandler serves the connector status page
type DashboardHandler struct {
	BaseHandler
	reporter DashboardReporter
	history  RunHistory
}

// NewDashboardHandler creates a new DashboardHandler. history may be nil.
func NewDashboardHandler(reporter DashboardReporter, history RunHistory) *DashboardHandler {
	return &DashboardHandler{reporter: reporter, history: history}
}

// Get handles GET /dashboard
func (h *DashboardHandler) Get(c *gin.Context) {
	report, err := h.reporter.Report(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := dto.DashboardResponse{
		ActiveProducts: report.ActiveProducts,
		ListingLinks:   report.ListingLinks,
		TotalOrders:    report.TotalOrders,
		ErliOrders:     report.ErliOrders,
		LastSyncAt:     report.LastSyncAt,
		RecentLogs:     make([]dto.SyncLogDTO, 0, len(report.RecentLogs)),
		RecentRuns:     []dto.RunSummary{},
	}
	for _, entry := range report.RecentLogs {
		resp.RecentLogs = append(resp.RecentLogs, dto.SyncLogDTO{
			ID:            entry.ID,
			Kind:          entry.Kind,
			CorrelationID: entry.CorrelationID,
			Message:       entry.Message,
			Detail:        entry.Detail,
			CreatedAt:     entry.CreatedAt,
		})
	}
	if h.history != nil {
		for _, run := range h.history.History(recentRuns) {
			resp.RecentRuns = append(resp.RecentRuns, toRunSummary(run))
		}
	}

	h.Success(c, resp)
}

func toRunSummary(run scheduler.Run) dto.RunSummary {
	return dto.RunSummary{
		ID:          run.ID.String(),
		Job:         run.Job,
		Trigger:     string(run.Trigger),
		Status:      string(run.Status),
		Error:       run.Error,
		Result:      run.Result,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
}
