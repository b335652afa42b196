package model

import (
	baseModel "crowdvote/pkg/model"
)

// ReactionType 表态类型
type ReactionType string

const (
	ReactionAgree    ReactionType = "agree"
	ReactionDisagree ReactionType = "disagree"
)

func (t ReactionType) Valid() bool {
	return t == ReactionAgree || t == ReactionDisagree
}

// Comment 活动评论。ParentID 只能指向一级评论，回复不能再被回复。
// CalculatedScore = AuthorCoinWeight + Σagree - Σdisagree，随表态和权重变化在事务内重算
type Comment struct {
	baseModel.BaseModel
	CampaignID       string  `gorm:"type:uuid;not null;index:idx_comments_campaign_parent" json:"campaignId"`
	AuthorID         string  `gorm:"type:uuid;not null;index" json:"authorId"`
	ParentID         *string `gorm:"type:uuid;index:idx_comments_campaign_parent" json:"parentId,omitempty"`
	Content          string  `gorm:"type:text;not null" json:"content"`
	AuthorCoinWeight int64   `gorm:"not null;default:0" json:"authorCoinWeight"`
	CalculatedScore  int64   `gorm:"not null;default:0;index" json:"calculatedScore"`
}

// CommentReaction 用户对评论的表态，(comment_id, user_id) 唯一
type CommentReaction struct {
	baseModel.BaseModel
	CommentID         string       `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_comment_user" json:"commentId"`
	UserID            string       `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_comment_user;index" json:"userId"`
	ReactionType      ReactionType `gorm:"type:varchar(10);not null" json:"reactionType"`
	ReactorCoinWeight int64        `gorm:"not null;default:0" json:"reactorCoinWeight"`
}

// CommentView 列表返回的评论，附带读取时统计的回复数和表态数
type CommentView struct {
	Comment
	ReplyCount    int64 `json:"replyCount"`
	AgreeCount    int64 `json:"agreeCount"`
	DisagreeCount int64 `json:"disagreeCount"`
}
