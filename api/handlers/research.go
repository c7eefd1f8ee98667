package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/api"
	"github.com/BaSui01/deepresearch/internal/metrics"
	"github.com/BaSui01/deepresearch/internal/task"
)

// Scheduler hands an accepted task to the background runner. Implementations
// must not block: a saturated runner returns an error instead of queueing.
type Scheduler interface {
	Schedule(taskID, query string) error
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(taskID, query string) error

func (f SchedulerFunc) Schedule(taskID, query string) error { return f(taskID, query) }

// ResearchHandler serves the submit/poll/fetch protocol.
type ResearchHandler struct {
	registry  task.Registry
	scheduler Scheduler
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewResearchHandler creates the handler. collector may be nil.
func NewResearchHandler(registry task.Registry, scheduler Scheduler, collector *metrics.Collector, logger *zap.Logger) *ResearchHandler {
	return &ResearchHandler{
		registry:  registry,
		scheduler: scheduler,
		collector: collector,
		logger:    logger.With(zap.String("component", "research_handler")),
	}
}

// HandleCreate handles POST /research. The task is registered before the
// background job is scheduled, so a successful response always names a task
// the polling endpoints can see.
func (h *ResearchHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.ResearchRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	rec, err := h.registry.Create(r.Context(), query)
	if err != nil {
		h.logger.Error("failed to create task", zap.Error(err))
		WriteErrorMessage(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.logger.Info("creating research task",
		zap.String("task_id", rec.ID),
		zap.String("query", query),
	)

	if err := h.scheduler.Schedule(rec.ID, query); err != nil {
		h.logger.Error("failed to schedule task",
			zap.String("task_id", rec.ID),
			zap.Error(err),
		)
		if failErr := h.registry.Fail(r.Context(), rec.ID, "task could not be scheduled"); failErr != nil {
			h.logger.Error("failed to mark unscheduled task failed",
				zap.String("task_id", rec.ID),
				zap.Error(failErr),
			)
		}
		WriteErrorMessage(w, http.StatusServiceUnavailable, "too many concurrent research tasks")
		return
	}

	if h.collector != nil {
		h.collector.RecordTaskSubmitted("registry")
	}

	WriteJSON(w, http.StatusOK, api.TaskResponse{
		TaskID: rec.ID,
		Status: task.StatusProcessing,
	})
}

// HandleStatus handles GET /status/{task_id}. Completed tasks embed the
// condensed result; failed tasks carry the error message. Both answer 200,
// clients branch on the status field.
func (h *ResearchHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("task_id")

	rec, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.logger.Warn("task not found", zap.String("task_id", id))
		WriteDetail(w, http.StatusNotFound, "Task not found")
		return
	}

	switch rec.Status {
	case task.StatusCompleted:
		resp := api.StatusResponse{Status: task.StatusCompleted}
		if rec.Result != nil {
			resp.Result = rec.Result.Condensed()
		}
		WriteJSON(w, http.StatusOK, resp)
	case task.StatusFailed:
		errMsg := rec.Error
		if errMsg == "" {
			errMsg = "Unknown error"
		}
		WriteJSON(w, http.StatusOK, api.StatusResponse{
			Status: task.StatusFailed,
			Error:  errMsg,
		})
	default:
		WriteJSON(w, http.StatusOK, api.StatusResponse{Status: rec.Status})
	}
}

// HandleResults handles GET /results/{task_id}. Only completed tasks have a
// fetchable result; anything earlier answers 400, never a partial payload.
func (h *ResearchHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("task_id")

	rec, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.logger.Warn("task not found", zap.String("task_id", id))
		WriteDetail(w, http.StatusNotFound, "Task not found")
		return
	}

	if rec.Status != task.StatusCompleted {
		h.logger.Warn("results requested for incomplete task",
			zap.String("task_id", id),
			zap.String("status", rec.Status),
		)
		WriteDetail(w, http.StatusBadRequest, "Task not completed")
		return
	}

	WriteJSON(w, http.StatusOK, rec.Result)
}
