package api

import (
	"context"
	"net/http"

	"IntentEngine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SignalTracker 实时信号入口（HTTP 与 kafka 共用）
type SignalTracker interface {
	Track(ctx context.Context, req service.TrackRequest) (*service.TrackResult, error)
}

type SignalHandler struct {
	tracker SignalTracker
	logger  *logrus.Logger
}

func NewSignalHandler(tracker SignalTracker, logger *logrus.Logger) *SignalHandler {
	return &SignalHandler{tracker: tracker, logger: logger}
}

// Track 上报单条行为事件 POST /api/signals/track
// 入库返回 201；个人邮箱域名返回 202 + outcome=skipped；信号已保存但未重算时 rescored=false
func (h *SignalHandler) Track(c *gin.Context) {
	var req service.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.tracker.Track(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, "Track", err)
		return
	}
	status := http.StatusAccepted
	if res.Outcome == service.TrackStored {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}
