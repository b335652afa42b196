package repository

import (
	"context"
	"errors"
	"time"

	"crowdvote/internal/domain/campaign/model"
	"crowdvote/pkg/apperror"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RankFunc 在同一个快照上计算名次，返回金币总数
type RankFunc func(supports []model.Support) int64

type CampaignRepository interface {
	Create(ctx context.Context, campaign *model.Campaign) error
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	List(ctx context.Context, status model.CampaignStatus, offset, limit int) ([]model.Campaign, int64, error)
	ListIDsByStatus(ctx context.Context, statuses ...model.CampaignStatus) ([]string, error)
	TransitionStatus(ctx context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus) (bool, error)
	MarkGoalReached(ctx context.Context, id string, at time.Time) (bool, error)

	IncrementSupport(ctx context.Context, campaignID, userID string, coins int64) error
	GetSupport(ctx context.Context, campaignID, userID string) (*model.Support, error)
	ListSupportsByPosition(ctx context.Context, campaignID string, offset, limit int) ([]model.Support, int64, error)
	RecalculateRanks(ctx context.Context, campaignID string, rank RankFunc) ([]model.Support, error)
}

type campaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

// --- Campaign ---

func (r *campaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	return apperror.Persistence("create campaign", r.db.WithContext(ctx).Create(campaign).Error)
}

func (r *campaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error; err != nil {
		return nil, apperror.Persistence("get campaign", err)
	}
	return &campaign, nil
}

func (r *campaignRepository) List(ctx context.Context, status model.CampaignStatus, offset, limit int) ([]model.Campaign, int64, error) {
	var campaigns []model.Campaign
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Campaign{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperror.Persistence("count campaigns", err)
	}

	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&campaigns).Error; err != nil {
		return nil, 0, apperror.Persistence("list campaigns", err)
	}
	return campaigns, total, nil
}

func (r *campaignRepository) ListIDsByStatus(ctx context.Context, statuses ...model.CampaignStatus) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Campaign{}).
		Where("status IN ?", statuses).
		Order("created_at asc").
		Pluck("id", &ids).Error
	return ids, apperror.Persistence("list campaign ids", err)
}

// TransitionStatus 条件更新状态，只有当前状态在 from 中才会生效
func (r *campaignRepository) TransitionStatus(ctx context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Campaign{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, apperror.Persistence("update campaign status", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkGoalReached 单条条件 UPDATE 完成目标检查，重复调用不会改动 goal_reached_at
func (r *campaignRepository) MarkGoalReached(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Campaign{}).
		Where("id = ? AND status = ? AND goal_reached_at IS NULL", id, model.StatusLive).
		Where("current_reservations >= reservation_goal * minimum_bid").
		Updates(map[string]interface{}{
			"status":          model.StatusGoalReached,
			"goal_reached_at": at,
		})
	if result.Error != nil {
		return false, apperror.Persistence("mark goal reached", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// --- Support ---

// IncrementSupport 原子累加：不存在则插入，存在则 coins_spent = coins_spent + coins
func (r *campaignRepository) IncrementSupport(ctx context.Context, campaignID, userID string, coins int64) error {
	support := &model.Support{
		CampaignID: campaignID,
		UserID:     userID,
		CoinsSpent: coins,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "campaign_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"coins_spent": gorm.Expr("supports.coins_spent + ?", coins),
			"updated_at":  time.Now(),
		}),
	}).Create(support).Error
	return apperror.Persistence("record support", err)
}

// GetSupport 不存在时返回 nil, nil
func (r *campaignRepository) GetSupport(ctx context.Context, campaignID, userID string) (*model.Support, error) {
	var support model.Support
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND user_id = ?", campaignID, userID).
		First(&support).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Persistence("get support", err)
	}
	return &support, nil
}

func (r *campaignRepository) ListSupportsByPosition(ctx context.Context, campaignID string, offset, limit int) ([]model.Support, int64, error) {
	var supports []model.Support
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Support{}).Where("campaign_id = ?", campaignID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperror.Persistence("count supports", err)
	}

	if err := query.Order("position asc").Order("coins_spent desc").Offset(offset).Limit(limit).Find(&supports).Error; err != nil {
		return nil, 0, apperror.Persistence("list supports", err)
	}
	return supports, total, nil
}

// RecalculateRanks 在一个事务内：读取全部助力快照，计算名次，写回名次与活动总额。
// 只更新名次或折扣发生变化的行
func (r *campaignRepository) RecalculateRanks(ctx context.Context, campaignID string, rank RankFunc) ([]model.Support, error) {
	var ranked []model.Support

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign model.Campaign
		if err := tx.Select("id").Where("id = ?", campaignID).First(&campaign).Error; err != nil {
			return err
		}

		var supports []model.Support
		if err := tx.Where("campaign_id = ?", campaignID).
			Order("coins_spent desc").Order("created_at asc").Order("id asc").
			Find(&supports).Error; err != nil {
			return err
		}

		type tier struct{ position, discount int }
		previous := make(map[string]tier, len(supports))
		for _, s := range supports {
			previous[s.ID] = tier{s.Position, s.DiscountPercentage}
		}

		total := rank(supports)

		for _, s := range supports {
			if previous[s.ID] == (tier{s.Position, s.DiscountPercentage}) {
				continue
			}
			if err := tx.Model(&model.Support{}).Where("id = ?", s.ID).
				UpdateColumns(map[string]interface{}{
					"position":            s.Position,
					"discount_percentage": s.DiscountPercentage,
				}).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&model.Campaign{}).Where("id = ?", campaignID).
			Update("current_reservations", total).Error; err != nil {
			return err
		}

		ranked = supports
		return nil
	})
	if err != nil {
		return nil, apperror.Persistence("recalculate ranks", err)
	}
	return ranked, nil
}
