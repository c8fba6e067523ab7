package api

import (
	"github.com/gin-gonic/gin"
)

// Handlers 全部 HTTP 接口，nil 的分组不注册
type Handlers struct {
	Jobs     *JobHandler
	Signals  *SignalHandler
	Programs *ProgramHandler
	Accounts *AccountHandler
	Admin    *AdminHandler
}

// RegisterRoutes 注册 /api 下的业务路由
func RegisterRoutes(r gin.IRouter, h Handlers) {
	g := r.Group("/api")

	if h.Jobs != nil {
		g.POST("/jobs/recompute", h.Jobs.RecomputeAll)
		g.POST("/jobs/recompute/:account_id", h.Jobs.RecomputeOne)
		g.GET("/jobs/runs/:run_id", h.Jobs.GetRun)
	}

	if h.Signals != nil {
		g.POST("/signals/track", h.Signals.Track)
	}

	if h.Programs != nil {
		g.GET("/programs", h.Programs.List)
		g.POST("/programs", h.Programs.Ingest)
		g.POST("/programs/classify", h.Programs.Classify)
		g.POST("/programs/reclassify", h.Programs.Reclassify)
	}

	if h.Accounts != nil {
		g.GET("/accounts", h.Accounts.ListAccounts)
		g.GET("/accounts/:id/intent", h.Accounts.GetIntent)
		g.GET("/accounts/:id/snapshots", h.Accounts.ListSnapshots)
	}

	if h.Admin != nil {
		a := g.Group("/admin")
		a.GET("/score-configs", h.Admin.ListScoreConfigs)
		a.POST("/score-configs", h.Admin.CreateScoreConfig)
		a.GET("/score-configs/:id", h.Admin.GetScoreConfig)
		a.PUT("/score-configs/:id", h.Admin.UpdateScoreConfig)
		a.POST("/score-configs/:id/activate", h.Admin.ActivateScoreConfig)
		a.GET("/score-configs/:id/weights", h.Admin.ListWeights)
		a.PUT("/score-configs/:id/weights", h.Admin.UpsertWeight)
		a.DELETE("/score-configs/:id/weights", h.Admin.DeleteWeight)

		a.GET("/event-rules", h.Admin.ListEventRules)
		a.POST("/event-rules", h.Admin.CreateEventRule)
		a.POST("/event-rules/reorder", h.Admin.ReorderEventRules)
		a.PUT("/event-rules/:id", h.Admin.UpdateEventRule)
		a.DELETE("/event-rules/:id", h.Admin.DeleteEventRule)

		a.GET("/program-rules", h.Admin.ListProgramRules)
		a.POST("/program-rules", h.Admin.SaveProgramRule)
		a.PUT("/program-rules/:id", h.Admin.SaveProgramRule)
		a.DELETE("/program-rules/:id", h.Admin.DeleteProgramRule)

		a.GET("/suppression-rules", h.Admin.ListSuppressionRules)
		a.POST("/suppression-rules", h.Admin.SaveSuppressionRule)
		a.PUT("/suppression-rules/:id", h.Admin.SaveSuppressionRule)
		a.DELETE("/suppression-rules/:id", h.Admin.DeleteSuppressionRule)

		a.GET("/blacklist", h.Admin.ListBlacklist)
		a.POST("/blacklist", h.Admin.AddBlacklistEntry)
		a.DELETE("/blacklist/:id", h.Admin.DeleteBlacklistEntry)
	}
}
