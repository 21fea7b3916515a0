package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/http/response"
	"github.com/yungbote/marketplace-backend/internal/services"
)

type ConsistencyHandler struct {
	consistency services.ConsistencyService
}

func NewConsistencyHandler(consistency services.ConsistencyService) *ConsistencyHandler {
	return &ConsistencyHandler{consistency: consistency}
}

// POST /api/admin/consistency/check?repair=1
func (h *ConsistencyHandler) Check(c *gin.Context) {
	repair, _ := strconv.ParseBool(c.DefaultQuery("repair", "false"))
	report, run, err := h.consistency.Run(c.Request.Context(), types.CheckTriggerManual, repair)
	if err != nil {
		response.RespondFailure(c, "consistency_check_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"run": run, "report": report})
}

// GET /api/admin/consistency/runs?limit=
func (h *ConsistencyHandler) Runs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.consistency.Recent(c.Request.Context(), limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_check_runs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}

// GET /api/admin/consistency/latest
func (h *ConsistencyHandler) Latest(c *gin.Context) {
	run, err := h.consistency.Latest(c.Request.Context())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "load_check_run_failed", err)
		return
	}
	if run == nil {
		response.RespondError(c, http.StatusNotFound, "no_check_runs", nil)
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}
