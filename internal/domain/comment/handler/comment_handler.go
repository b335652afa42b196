package handler

import (
	"net/http"

	"crowdvote/internal/domain/comment/model"
	"crowdvote/internal/domain/comment/service"
	"crowdvote/internal/pkg/middleware"
	"crowdvote/pkg/response"
	"crowdvote/pkg/utils"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	service service.CommentService
}

func NewCommentHandler(s service.CommentService) *CommentHandler {
	return &CommentHandler{service: s}
}

// CommentInput 评论输入，ParentID 为空表示一级评论
type CommentInput struct {
	Content  string  `json:"content" binding:"required,max=5000"`
	ParentID *string `json:"parentId"`
}

// EditInput 修改评论输入
type EditInput struct {
	Content string `json:"content" binding:"required,max=5000"`
}

// ReactionInput 表态输入
type ReactionInput struct {
	Type string `json:"type" binding:"required,oneof=agree disagree"`
}

type listQuery struct {
	utils.Pagination
	ParentID string `form:"parentId"`
}

// ListComments 活动评论列表
// @Summary 评论列表
// @Tags Comment
// @Produce json
// @Param id path string true "活动ID"
// @Param parentId query string false "父评论ID，为空时返回一级评论"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} utils.PageResult
// @Router /campaigns/{id}/comments [get]
func (h *CommentHandler) ListComments(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	var query listQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	query.GetPageOffset()

	var parentID *string
	if query.ParentID != "" {
		parent, err := utils.ParseID(query.ParentID)
		if err != nil {
			response.FromError(c, err)
			return
		}
		parentID = &parent
	}

	comments, total, err := h.service.FetchCommentsForCampaign(c.Request.Context(), id, parentID, query.Page, query.Limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, utils.PageResult{List: comments, Total: total, Page: query.Page, Limit: query.Limit})
}

// AddComment 发表评论或回复
// @Summary 发表评论
// @Tags Comment
// @Accept json
// @Produce json
// @Param id path string true "活动ID"
// @Param input body CommentInput true "评论内容"
// @Success 200 {object} model.Comment
// @Router /campaigns/{id}/comments [post]
func (h *CommentHandler) AddComment(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	var input CommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if input.ParentID != nil {
		parent, err := utils.ParseID(*input.ParentID)
		if err != nil {
			response.FromError(c, err)
			return
		}
		input.ParentID = &parent
	}

	comment, err := h.service.AddComment(c.Request.Context(), id, middleware.UserID(c), input.Content, input.ParentID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, comment)
}

func (h *CommentHandler) EditComment(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	var input EditInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	comment, err := h.service.EditComment(c.Request.Context(), id, middleware.UserID(c), input.Content)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, comment)
}

func (h *CommentHandler) DeleteComment(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	if err := h.service.DeleteComment(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, "Comment deleted")
}

// React 赞同或反对，重复提交会刷新权重
// @Summary 表态
// @Tags Comment
// @Accept json
// @Produce json
// @Param id path string true "评论ID"
// @Param input body ReactionInput true "表态类型"
// @Success 200 {object} model.Comment
// @Router /comments/{id}/reaction [put]
func (h *CommentHandler) React(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	var input ReactionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	comment, err := h.service.AddCommentReaction(c.Request.Context(), id, middleware.UserID(c), model.ReactionType(input.Type))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, comment)
}

func (h *CommentHandler) Unreact(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	comment, err := h.service.RemoveCommentReaction(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, comment)
}
