package api

import (
	"context"
	"net/http"

	"IntentEngine/internal/model"
	"IntentEngine/internal/scoring"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 新建事件规则未指定 priority 时的取值
const defaultEventRulePriority = 100

// AdminService 配置管理，写操作负责使缓存失效
type AdminService interface {
	ListScoreConfigs(ctx context.Context) ([]*model.ScoreConfig, error)
	GetScoreConfig(ctx context.Context, id uint64) (*model.ScoreConfig, error)
	CreateScoreConfig(ctx context.Context, cfg *model.ScoreConfig) error
	UpdateScoreConfig(ctx context.Context, cfg *model.ScoreConfig) error
	ActivateScoreConfig(ctx context.Context, id uint64) error

	ListWeights(ctx context.Context, scoreConfigID uint64) ([]*model.WeightEntry, error)
	UpsertWeight(ctx context.Context, scoreConfigID uint64, wireKey string, weight int) (*model.WeightEntry, error)
	DeleteWeight(ctx context.Context, scoreConfigID uint64, wireKey string) error

	ListEventRules(ctx context.Context) ([]*model.EventRule, error)
	CreateEventRule(ctx context.Context, rule *model.EventRule) error
	UpdateEventRule(ctx context.Context, rule *model.EventRule) error
	DeleteEventRule(ctx context.Context, id uint64) error
	ReorderEventRules(ctx context.Context, ids []uint64) error

	ListProgramRules(ctx context.Context) ([]*model.ProgramRule, error)
	SaveProgramRule(ctx context.Context, rule *model.ProgramRule) error
	DeleteProgramRule(ctx context.Context, id uint64) error

	ListSuppressionRules(ctx context.Context) ([]*model.SuppressionRule, error)
	SaveSuppressionRule(ctx context.Context, rule *model.SuppressionRule) error
	DeleteSuppressionRule(ctx context.Context, id uint64) error

	ListBlacklist(ctx context.Context) ([]*model.AgencyBlacklistEntry, error)
	AddBlacklistEntry(ctx context.Context, e *model.AgencyBlacklistEntry) error
	DeleteBlacklistEntry(ctx context.Context, id uint64) error
}

// AdminHandler 打分配置 / 事件规则 / 采购规则管理接口
type AdminHandler struct {
	admin  AdminService
	logger *logrus.Logger
}

func NewAdminHandler(admin AdminService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// WeightRequest 权重写入，key 形如 page_view:pricing:
type WeightRequest struct {
	Key    string `json:"key" binding:"required"`
	Weight int    `json:"weight"`
}

// ReorderRequest 按数组顺序重排事件规则
type ReorderRequest struct {
	IDs []uint64 `json:"ids"`
}

// ListScoreConfigs GET /api/admin/score-configs
func (h *AdminHandler) ListScoreConfigs(c *gin.Context) {
	list, err := h.admin.ListScoreConfigs(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ListScoreConfigs", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetScoreConfig GET /api/admin/score-configs/:id
func (h *AdminHandler) GetScoreConfig(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	cfg, err := h.admin.GetScoreConfig(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "GetScoreConfig", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// CreateScoreConfig 新建为 draft POST /api/admin/score-configs，未传的参数取默认值
func (h *AdminHandler) CreateScoreConfig(c *gin.Context) {
	d := scoring.DefaultParams()
	cfg := model.ScoreConfig{
		LambdaDecay:       d.LambdaDecay,
		NormalizeK:        d.NormalizeK,
		ColdMax:           d.ColdMax,
		WarmMax:           d.WarmMax,
		SurgeSurgingMin:   d.SurgeSurgingMin,
		SurgeExplodingMin: d.SurgeExplodingMin,
	}
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.admin.CreateScoreConfig(c.Request.Context(), &cfg); err != nil {
		respondError(c, h.logger, "CreateScoreConfig", err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

// UpdateScoreConfig PUT /api/admin/score-configs/:id
func (h *AdminHandler) UpdateScoreConfig(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var cfg model.ScoreConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	cfg.ID = id
	if err := h.admin.UpdateScoreConfig(c.Request.Context(), &cfg); err != nil {
		respondError(c, h.logger, "UpdateScoreConfig", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// ActivateScoreConfig POST /api/admin/score-configs/:id/activate
func (h *AdminHandler) ActivateScoreConfig(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.admin.ActivateScoreConfig(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "ActivateScoreConfig", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "activated", "id": id})
}

// ListWeights GET /api/admin/score-configs/:id/weights
func (h *AdminHandler) ListWeights(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	list, err := h.admin.ListWeights(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "ListWeights", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// UpsertWeight PUT /api/admin/score-configs/:id/weights
func (h *AdminHandler) UpsertWeight(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req WeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	entry, err := h.admin.UpsertWeight(c.Request.Context(), id, req.Key, req.Weight)
	if err != nil {
		respondError(c, h.logger, "UpsertWeight", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeleteWeight DELETE /api/admin/score-configs/:id/weights?key=page_view:pricing:
func (h *AdminHandler) DeleteWeight(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeleteWeight(c.Request.Context(), id, c.Query("key")); err != nil {
		respondError(c, h.logger, "DeleteWeight", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListEventRules GET /api/admin/event-rules
func (h *AdminHandler) ListEventRules(c *gin.Context) {
	list, err := h.admin.ListEventRules(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ListEventRules", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateEventRule POST /api/admin/event-rules，未传 enabled/priority 时为启用、100
func (h *AdminHandler) CreateEventRule(c *gin.Context) {
	rule := model.EventRule{Enabled: true, Priority: defaultEventRulePriority}
	if err := c.ShouldBindJSON(&rule); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.admin.CreateEventRule(c.Request.Context(), &rule); err != nil {
		respondError(c, h.logger, "CreateEventRule", err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// UpdateEventRule PUT /api/admin/event-rules/:id
func (h *AdminHandler) UpdateEventRule(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var rule model.EventRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	rule.ID = id
	if err := h.admin.UpdateEventRule(c.Request.Context(), &rule); err != nil {
		respondError(c, h.logger, "UpdateEventRule", err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteEventRule DELETE /api/admin/event-rules/:id
func (h *AdminHandler) DeleteEventRule(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeleteEventRule(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "DeleteEventRule", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderEventRules POST /api/admin/event-rules/reorder
func (h *AdminHandler) ReorderEventRules(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.admin.ReorderEventRules(c.Request.Context(), req.IDs); err != nil {
		respondError(c, h.logger, "ReorderEventRules", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reordered", "count": len(req.IDs)})
}

// ListProgramRules GET /api/admin/program-rules
func (h *AdminHandler) ListProgramRules(c *gin.Context) {
	list, err := h.admin.ListProgramRules(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ListProgramRules", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// SaveProgramRule POST /api/admin/program-rules 与 PUT /api/admin/program-rules/:id
func (h *AdminHandler) SaveProgramRule(c *gin.Context) {
	rule := model.ProgramRule{Enabled: true}
	if err := c.ShouldBindJSON(&rule); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	rule.ID = 0
	if c.Param("id") != "" {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		rule.ID = id
	}
	if err := h.admin.SaveProgramRule(c.Request.Context(), &rule); err != nil {
		respondError(c, h.logger, "SaveProgramRule", err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteProgramRule DELETE /api/admin/program-rules/:id
func (h *AdminHandler) DeleteProgramRule(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeleteProgramRule(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "DeleteProgramRule", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSuppressionRules GET /api/admin/suppression-rules
func (h *AdminHandler) ListSuppressionRules(c *gin.Context) {
	list, err := h.admin.ListSuppressionRules(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ListSuppressionRules", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// SaveSuppressionRule POST /api/admin/suppression-rules 与 PUT /api/admin/suppression-rules/:id
func (h *AdminHandler) SaveSuppressionRule(c *gin.Context) {
	rule := model.SuppressionRule{Enabled: true}
	if err := c.ShouldBindJSON(&rule); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	rule.ID = 0
	if c.Param("id") != "" {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		rule.ID = id
	}
	if err := h.admin.SaveSuppressionRule(c.Request.Context(), &rule); err != nil {
		respondError(c, h.logger, "SaveSuppressionRule", err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteSuppressionRule DELETE /api/admin/suppression-rules/:id
func (h *AdminHandler) DeleteSuppressionRule(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeleteSuppressionRule(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "DeleteSuppressionRule", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListBlacklist GET /api/admin/blacklist
func (h *AdminHandler) ListBlacklist(c *gin.Context) {
	list, err := h.admin.ListBlacklist(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ListBlacklist", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// AddBlacklistEntry POST /api/admin/blacklist
func (h *AdminHandler) AddBlacklistEntry(c *gin.Context) {
	var e model.AgencyBlacklistEntry
	if err := c.ShouldBindJSON(&e); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	e.ID = 0
	if err := h.admin.AddBlacklistEntry(c.Request.Context(), &e); err != nil {
		respondError(c, h.logger, "AddBlacklistEntry", err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// DeleteBlacklistEntry DELETE /api/admin/blacklist/:id
func (h *AdminHandler) DeleteBlacklistEntry(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeleteBlacklistEntry(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "DeleteBlacklistEntry", err)
		return
	}
	c.Status(http.StatusNoContent)
}
