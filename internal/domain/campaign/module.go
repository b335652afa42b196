package campaign

import (
	"crowdvote/internal/domain/campaign/handler"
	"crowdvote/internal/domain/campaign/repository"
	"crowdvote/internal/domain/campaign/service"
	"crowdvote/internal/domain/comment"
	"crowdvote/internal/pkg/middleware"
	"crowdvote/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CampaignModule 众筹活动与助力排名模块
type CampaignModule struct{}

func init() {
	registry.Register(&CampaignModule{})
}

func (m *CampaignModule) Name() string {
	return "campaign"
}

func (m *CampaignModule) Priority() int {
	return 10
}

// NewService 构建助力服务。Redis 未配置时排行榜直接读数据库
func NewService(ctx *registry.ModuleContext) service.CampaignService {
	repo := repository.NewCampaignRepository(ctx.DB)

	var board repository.Leaderboard
	if ctx.Redis != nil {
		board = repository.NewRedisLeaderboard(ctx.Redis, ctx.Config.Leaderboard.TTL)
	}

	return service.NewCampaignService(repo, service.Options{
		Leaderboard: board,
		Propagator:  comment.NewService(ctx),
		Workers:     ctx.Workers,
		Logger:      ctx.Logger,
		Metrics:     ctx.Metrics,
	})
}

func (m *CampaignModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	h := handler.NewCampaignHandler(NewService(ctx))

	// 2. 路由注册
	setupRoutes(ctx.Router, h, middleware.NewRateLimiter(ctx.Config.RateLimit))

	return nil
}

// setupRoutes 助力会触发整场活动重排，按用户限流
func setupRoutes(r *gin.Engine, h *handler.CampaignHandler, limiter *middleware.RateLimiter) {
	g := r.Group("/campaigns")
	{
		g.GET("", h.ListCampaigns)
		g.GET("/:id", h.GetCampaign)
		g.GET("/:id/leaderboard", h.GetLeaderboard)
	}

	// 需要认证的路由组
	authorized := g.Group("")
	authorized.Use(middleware.AuthMiddleware())
	{
		authorized.POST("/:id/support", middleware.RateLimitMiddleware(limiter), h.RecordSupport)
		authorized.GET("/:id/support/me", h.GetMySupport)

		// 需要管理员权限的路由组
		admin := authorized.Group("")
		admin.Use(middleware.AdminMiddleware())
		{
			admin.POST("", h.CreateCampaign)
			admin.PUT("/:id/status", h.UpdateStatus)
			admin.POST("/:id/recalculate", h.Recalculate)
		}
	}
}
