package api

import (
	"context"
	"net/http"

	"IntentEngine/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Recomputer 打分任务入口
type Recomputer interface {
	RecomputeAll(ctx context.Context, rangeDays int, accountKeys []string) (*model.RecomputeRun, error)
	RecomputeOne(ctx context.Context, accountID uint64) (*model.DailyAccountSnapshot, error)
	GetRun(ctx context.Context, runUUID string) (*model.RecomputeRun, error)
}

// JobHandler 打分任务接口
type JobHandler struct {
	recomputer Recomputer
	logger     *logrus.Logger
}

func NewJobHandler(recomputer Recomputer, logger *logrus.Logger) *JobHandler {
	return &JobHandler{recomputer: recomputer, logger: logger}
}

// RecomputeRequest 批量任务参数，全部可选
type RecomputeRequest struct {
	RangeDays   int      `json:"range_days"`
	AccountKeys []string `json:"account_keys"`
}

// RecomputeAll 批量打分 POST /api/jobs/recompute
// 同步执行；中止的任务同样返回 run，便于按 run_id 排查
func (h *JobHandler) RecomputeAll(c *gin.Context) {
	var req RecomputeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	run, err := h.recomputer.RecomputeAll(c.Request.Context(), req.RangeDays, req.AccountKeys)
	if err != nil {
		status := statusFor(err)
		h.logger.WithError(err).WithField("status", status).Error("RecomputeAll failed")
		body := gin.H{"error": err.Error()}
		if run != nil {
			body["run"] = run
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, run)
}

// RecomputeOne 单账号实时重算 POST /api/jobs/recompute/:account_id
func (h *JobHandler) RecomputeOne(c *gin.Context) {
	accountID, ok := uintParam(c, "account_id")
	if !ok {
		return
	}
	snap, err := h.recomputer.RecomputeOne(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, h.logger, "RecomputeOne", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetRun 任务记录 GET /api/jobs/runs/:run_id
func (h *JobHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")
	if runID == "" {
		badRequest(c, "run_id is required")
		return
	}
	run, err := h.recomputer.GetRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, h.logger, "GetRun", err)
		return
	}
	c.JSON(http.StatusOK, run)
}
