package comment

import (
	campaignRepository "crowdvote/internal/domain/campaign/repository"
	campaignService "crowdvote/internal/domain/campaign/service"
	"crowdvote/internal/domain/comment/handler"
	"crowdvote/internal/domain/comment/repository"
	"crowdvote/internal/domain/comment/service"
	"crowdvote/internal/pkg/middleware"
	"crowdvote/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CommentModule 评论模块
type CommentModule struct{}

func init() {
	registry.Register(&CommentModule{})
}

func (m *CommentModule) Name() string {
	return "comment"
}

func (m *CommentModule) Priority() int {
	return 20
}

// NewService 构建评论服务，助力模块也用它来回写权重
func NewService(ctx *registry.ModuleContext) service.CommentService {
	ledger := campaignService.NewSupportReader(campaignRepository.NewCampaignRepository(ctx.DB))
	return service.NewCommentService(repository.NewCommentRepository(ctx.DB), ledger, ctx.Logger, ctx.Metrics)
}

func (m *CommentModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	h := handler.NewCommentHandler(NewService(ctx))

	// 2. 路由注册
	setupRoutes(ctx.Router, h, middleware.NewRateLimiter(ctx.Config.RateLimit))

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.CommentHandler, limiter *middleware.RateLimiter) {
	campaigns := r.Group("/campaigns")
	{
		campaigns.GET("/:id/comments", h.ListComments)
		campaigns.POST("/:id/comments", middleware.AuthMiddleware(), middleware.RateLimitMiddleware(limiter), h.AddComment)
	}

	comments := r.Group("/comments")
	comments.Use(middleware.AuthMiddleware(), middleware.RateLimitMiddleware(limiter))
	{
		comments.PUT("/:id", h.EditComment)
		comments.DELETE("/:id", h.DeleteComment)
		comments.PUT("/:id/reaction", h.React)
		comments.DELETE("/:id/reaction", h.Unreact)
	}
}
