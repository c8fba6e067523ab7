package api

import (
	"context"
	"net/http"
	"strconv"

	"IntentEngine/internal/classifier"
	"IntentEngine/internal/model"
	"IntentEngine/internal/repository"
	"IntentEngine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ProgramClassifier 采购机会分类
type ProgramClassifier interface {
	Classify(ctx context.Context, rec classifier.Record) (classifier.ClassificationResult, error)
	ClassifyAndStore(ctx context.Context, in service.OpportunityInput) (*model.Opportunity, error)
	ReclassifyAll(ctx context.Context) (int, error)
	List(ctx context.Context, filter repository.OpportunityFilter, page, pageSize int) ([]*model.Opportunity, int64, error)
}

type ProgramHandler struct {
	classifier ProgramClassifier
	logger     *logrus.Logger
}

func NewProgramHandler(classifier ProgramClassifier, logger *logrus.Logger) *ProgramHandler {
	return &ProgramHandler{classifier: classifier, logger: logger}
}

// ClassifyRequest 试分类请求
type ClassifyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Agency      string `json:"agency"`
	NAICS       string `json:"naics"`
}

// Classify 只返回分类结果，不落库 POST /api/programs/classify
func (h *ProgramHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.classifier.Classify(c.Request.Context(), classifier.Record{
		Title:       req.Title,
		Description: req.Description,
		Agency:      req.Agency,
		NAICS:       req.NAICS,
	})
	if err != nil {
		respondError(c, h.logger, "Classify", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Ingest 分类并按 (source, external_id) 入库 POST /api/programs
func (h *ProgramHandler) Ingest(c *gin.Context) {
	var in service.OpportunityInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	opp, err := h.classifier.ClassifyAndStore(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, "ClassifyAndStore", err)
		return
	}
	c.JSON(http.StatusOK, opp)
}

// Reclassify 规则变更后全量重跑 POST /api/programs/reclassify
func (h *ProgramHandler) Reclassify(c *gin.Context) {
	n, err := h.classifier.ReclassifyAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ReclassifyAll", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reclassified": n})
}

// List GET /api/programs?lane=engineering&min_score=40&show_suppressed=false&page=1&page_size=20
func (h *ProgramHandler) List(c *gin.Context) {
	minScore, _ := strconv.Atoi(c.DefaultQuery("min_score", "0"))
	showSuppressed, _ := strconv.ParseBool(c.DefaultQuery("show_suppressed", "false"))
	page, pageSize := pageParams(c)

	list, total, err := h.classifier.List(c.Request.Context(), repository.OpportunityFilter{
		ServiceLane:    c.Query("lane"),
		MinScore:       minScore,
		ShowSuppressed: showSuppressed,
	}, page, pageSize)
	if err != nil {
		respondError(c, h.logger, "ListOpportunities", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "page": page, "page_size": pageSize, "list": list})
}
