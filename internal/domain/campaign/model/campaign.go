package model

import (
	"time"

	baseModel "crowdvote/pkg/model"
)

// CampaignStatus 活动状态
type CampaignStatus string

const (
	StatusLive        CampaignStatus = "live"
	StatusGoalReached CampaignStatus = "goal_reached"
	StatusKickstarter CampaignStatus = "kickstarter"
	StatusArchived    CampaignStatus = "archived"
)

// Valid 是否为已知状态
func (s CampaignStatus) Valid() bool {
	switch s {
	case StatusLive, StatusGoalReached, StatusKickstarter, StatusArchived:
		return true
	}
	return false
}

// Campaign 众筹活动。CurrentReservations 只由重排步骤写入，等于所有助力的 coins_spent 之和
type Campaign struct {
	baseModel.BaseModel
	Title               string         `gorm:"type:varchar(200);not null" json:"title"`
	Description         string         `gorm:"type:text" json:"description"`
	ReservationGoal     int64          `gorm:"not null" json:"reservationGoal"`
	MinimumBid          int64          `gorm:"not null;default:1" json:"minimumBid"`
	CurrentReservations int64          `gorm:"not null;default:0" json:"currentReservations"`
	Status              CampaignStatus `gorm:"type:varchar(20);not null;default:'live';index" json:"status"`
	GoalReachedAt       *time.Time     `json:"goalReachedAt,omitempty"`
}

// GoalCoins 达成目标所需的金币数
func (c *Campaign) GoalCoins() int64 {
	return c.ReservationGoal * c.MinimumBid
}

// Support 用户对某个活动的累计助力，(campaign_id, user_id) 唯一
type Support struct {
	baseModel.BaseModel
	CampaignID         string `gorm:"type:uuid;not null;uniqueIndex:idx_supports_campaign_user" json:"campaignId"`
	UserID             string `gorm:"type:uuid;not null;uniqueIndex:idx_supports_campaign_user;index" json:"userId"`
	CoinsSpent         int64  `gorm:"not null;default:0" json:"coinsSpent"`
	Position           int    `gorm:"not null;default:0" json:"position"`
	DiscountPercentage int    `gorm:"not null;default:0" json:"discountPercentage"`
}
