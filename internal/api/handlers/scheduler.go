package handlers

import (
	"net/http"

	"github.com/nikhilbhatia/commitcanvas/internal/api/dto"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/logger"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/utils"
	"github.com/nikhilbhatia/commitcanvas/internal/services"
)

type SchedulerHandler struct {
	scheduler *services.SchedulerService
	logger    *logger.Logger
}

func NewSchedulerHandler(scheduler *services.SchedulerService, log *logger.Logger) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler, logger: log}
}

// Status reports whether the dispatcher is initialized and running, and
// which cadences it has registered.
func (h *SchedulerHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.scheduler.Status()
	utils.WriteSuccess(w, http.StatusOK, dto.SchedulerStatusDTO{
		Initialized:    status.Initialized,
		Running:        status.Running,
		ActiveCadences: status.ActiveCadences,
		Timezone:       status.Timezone,
		Now:            status.Now,
	})
}
