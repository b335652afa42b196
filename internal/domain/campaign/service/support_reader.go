package service

import (
	"context"

	"crowdvote/internal/domain/campaign/model"
	"crowdvote/internal/domain/campaign/repository"
)

// SupportReader 助力账本的只读视图，评论模块用它做资格校验和取权重
type SupportReader struct {
	repo repository.CampaignRepository
}

func NewSupportReader(repo repository.CampaignRepository) *SupportReader {
	return &SupportReader{repo: repo}
}

func (r *SupportReader) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	return r.repo.GetByID(ctx, id)
}

// GetUserCampaignSupport 未助力时返回 nil, nil
func (r *SupportReader) GetUserCampaignSupport(ctx context.Context, campaignID, userID string) (*model.Support, error) {
	return r.repo.GetSupport(ctx, campaignID, userID)
}

func (r *SupportReader) HasUserSupportedCampaign(ctx context.Context, userID, campaignID string) (bool, error) {
	support, err := r.repo.GetSupport(ctx, campaignID, userID)
	if err != nil {
		return false, err
	}
	return support != nil, nil
}

// GetUserCoinsSpentOnCampaign 未助力时返回 0
func (r *SupportReader) GetUserCoinsSpentOnCampaign(ctx context.Context, userID, campaignID string) (int64, error) {
	support, err := r.repo.GetSupport(ctx, campaignID, userID)
	if err != nil || support == nil {
		return 0, err
	}
	return support.CoinsSpent, nil
}
