package handler

import (
	"net/http"

	"crowdvote/internal/domain/campaign/model"
	"crowdvote/internal/domain/campaign/service"
	"crowdvote/internal/pkg/middleware"
	"crowdvote/pkg/response"
	"crowdvote/pkg/utils"

	"github.com/gin-gonic/gin"
)

type CampaignHandler struct {
	service service.CampaignService
}

func NewCampaignHandler(s service.CampaignService) *CampaignHandler {
	return &CampaignHandler{service: s}
}

// CreateCampaignInput 创建活动输入
type CreateCampaignInput struct {
	Title           string `json:"title" binding:"required,max=200"`
	Description     string `json:"description"`
	ReservationGoal int64  `json:"reservationGoal" binding:"required,min=1"`
	MinimumBid      int64  `json:"minimumBid" binding:"required,min=1"`
}

// UpdateStatusInput 状态流转输入
type UpdateStatusInput struct {
	Status string `json:"status" binding:"required,oneof=kickstarter archived"`
}

// SupportInput 助力输入，金币扣减由调用方负责
type SupportInput struct {
	Coins int64 `json:"coins" binding:"required,min=1"`
}

type listQuery struct {
	utils.Pagination
	Status string `form:"status"`
}

// CreateCampaign 创建活动 (管理员)
// @Summary 创建活动
// @Tags Campaign
// @Accept json
// @Produce json
// @Param input body CreateCampaignInput true "活动信息"
// @Success 200 {object} model.Campaign
// @Router /campaigns [post]
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var input CreateCampaignInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	campaign, err := h.service.CreateCampaign(c.Request.Context(), service.CreateCampaignInput{
		Title:           input.Title,
		Description:     input.Description,
		ReservationGoal: input.ReservationGoal,
		MinimumBid:      input.MinimumBid,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, campaign)
}

// ListCampaigns 活动列表
// @Summary 活动列表
// @Tags Campaign
// @Produce json
// @Param status query string false "状态过滤"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} utils.PageResult
// @Router /campaigns [get]
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	var query listQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	query.GetPageOffset()

	campaigns, total, err := h.service.ListCampaigns(c.Request.Context(), model.CampaignStatus(query.Status), query.Page, query.Limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, utils.PageResult{List: campaigns, Total: total, Page: query.Page, Limit: query.Limit})
}

func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	campaign, err := h.service.GetCampaign(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, campaign)
}

// UpdateStatus 状态流转 (管理员)
// @Summary 修改活动状态
// @Tags Campaign
// @Accept json
// @Produce json
// @Param id path string true "活动ID"
// @Param input body UpdateStatusInput true "目标状态"
// @Success 200 {object} model.Campaign
// @Router /campaigns/{id}/status [put]
func (h *CampaignHandler) UpdateStatus(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	var input UpdateStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	campaign, err := h.service.UpdateStatus(c.Request.Context(), id, model.CampaignStatus(input.Status))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, campaign)
}

// Recalculate 手动触发全量重排 (管理员)
func (h *CampaignHandler) Recalculate(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	if err := h.service.RecalculateCampaignData(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, "Campaign recalculated")
}

// GetLeaderboard 排行榜
// @Summary 活动排行榜
// @Tags Campaign
// @Produce json
// @Param id path string true "活动ID"
// @Success 200 {object} utils.PageResult
// @Router /campaigns/{id}/leaderboard [get]
func (h *CampaignHandler) GetLeaderboard(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	var pager utils.Pagination
	if err := c.ShouldBindQuery(&pager); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	pager.GetPageOffset()

	supports, total, err := h.service.GetLeaderboard(c.Request.Context(), id, pager.Page, pager.Limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, utils.PageResult{List: supports, Total: total, Page: pager.Page, Limit: pager.Limit})
}

// RecordSupport 助力活动
// @Summary 助力活动
// @Tags Campaign
// @Accept json
// @Produce json
// @Param id path string true "活动ID"
// @Param input body SupportInput true "金币数"
// @Success 200 {object} model.Support
// @Router /campaigns/{id}/support [post]
func (h *CampaignHandler) RecordSupport(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	var input SupportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	support, err := h.service.RecordSupport(c.Request.Context(), id, middleware.UserID(c), input.Coins)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, support)
}

// GetMySupport 当前用户的助力，未助力时 data 为 null
func (h *CampaignHandler) GetMySupport(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	support, err := h.service.GetUserCampaignSupport(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, support)
}
