package api

import (
	"context"
	"net/http"
	"strconv"

	"IntentEngine/internal/model"
	"IntentEngine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AccountQuerier 账号意向查询
type AccountQuerier interface {
	GetIntent(ctx context.Context, accountID uint64) (*service.AccountIntent, error)
	ListSnapshots(ctx context.Context, accountID uint64, days int) ([]*service.SnapshotView, error)
	ListAccounts(ctx context.Context, stage string, page, pageSize int) ([]*model.Account, int64, error)
}

// AccountHandler 账号意向查询接口
type AccountHandler struct {
	accounts AccountQuerier
	logger   *logrus.Logger
}

func NewAccountHandler(accounts AccountQuerier, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// ListAccounts GET /api/accounts?stage=Hot&page=1&page_size=20
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, total, err := h.accounts.ListAccounts(c.Request.Context(), c.Query("stage"), page, pageSize)
	if err != nil {
		respondError(c, h.logger, "ListAccounts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "page": page, "page_size": pageSize, "list": list})
}

// GetIntent 账号投影 + 最新快照 GET /api/accounts/:id/intent
func (h *AccountHandler) GetIntent(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	intent, err := h.accounts.GetIntent(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "GetIntent", err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

// ListSnapshots 快照历史 GET /api/accounts/:id/snapshots?days=30
func (h *AccountHandler) ListSnapshots(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil {
		badRequest(c, "days must be an integer")
		return
	}
	list, err := h.accounts.ListSnapshots(c.Request.Context(), id, days)
	if err != nil {
		respondError(c, h.logger, "ListSnapshots", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": id, "days": len(list), "snapshots": list})
}
