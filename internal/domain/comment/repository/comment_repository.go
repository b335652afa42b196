package repository

import (
	"context"
	"errors"
	"time"

	"crowdvote/internal/domain/comment/model"
	"crowdvote/pkg/apperror"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	UpdateContent(ctx context.Context, id, content string, authorWeight int64) error
	Delete(ctx context.Context, id string) (int64, error)
	ListByCampaign(ctx context.Context, campaignID string, parentID *string, offset, limit int) ([]model.CommentView, int64, error)

	GetReaction(ctx context.Context, commentID, userID string) (*model.CommentReaction, error)
	UpsertReaction(ctx context.Context, reaction *model.CommentReaction) error
	DeleteReaction(ctx context.Context, commentID, userID string) (bool, error)

	RecalculateUserInfluence(ctx context.Context, campaignID, userID string, weight int64) error
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// scoreExpr 评论得分：作者权重 + 赞同权重之和 - 反对权重之和
const scoreExpr = `author_coin_weight + COALESCE((
	SELECT SUM(CASE WHEN r.reaction_type = 'agree' THEN r.reactor_coin_weight ELSE -r.reactor_coin_weight END)
	FROM comment_reactions r WHERE r.comment_id = comments.id
), 0)`

// recomputeScores 按当前表态重算满足条件的评论得分，必须在调用方事务内执行
func recomputeScores(tx *gorm.DB, query interface{}, args ...interface{}) error {
	return tx.Model(&model.Comment{}).
		Where(query, args...).
		UpdateColumn("calculated_score", gorm.Expr(scoreExpr)).Error
}

// lockComments 对待重算的评论加行锁（按 id 顺序）。
// 之后的语句在拿到锁后执行，能读到并发事务已提交的表态
func lockComments(tx *gorm.DB, query interface{}, args ...interface{}) error {
	var ids []string
	return tx.Model(&model.Comment{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(query, args...).
		Order("id").
		Pluck("id", &ids).Error
}

func (r *commentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return apperror.Persistence("create comment", r.db.WithContext(ctx).Create(comment).Error)
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	var comment model.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error; err != nil {
		return nil, apperror.Persistence("get comment", err)
	}
	return &comment, nil
}

// UpdateContent 修改内容并刷新作者权重，得分在同一事务内重算
func (r *commentRepository) UpdateContent(ctx context.Context, id, content string, authorWeight int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Comment{}).Where("id = ?", id).Updates(map[string]interface{}{
			"content":            content,
			"author_coin_weight": authorWeight,
		}).Error; err != nil {
			return err
		}
		return recomputeScores(tx, "id = ?", id)
	})
	return apperror.Persistence("update comment", err)
}

// Delete 删除评论及其回复，以及它们的全部表态。返回删除的评论数
func (r *commentRepository) Delete(ctx context.Context, id string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := []string{id}
		var replies []string
		if err := tx.Model(&model.Comment{}).Where("parent_id = ?", id).Pluck("id", &replies).Error; err != nil {
			return err
		}
		ids = append(ids, replies...)

		if err := tx.Where("comment_id IN ?", ids).Delete(&model.CommentReaction{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&model.Comment{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	return deleted, apperror.Persistence("delete comment", err)
}

// ListByCampaign parentID 为 nil 时返回一级评论，否则返回该评论的回复。
// 按得分降序，同分按发布时间升序
func (r *commentRepository) ListByCampaign(ctx context.Context, campaignID string, parentID *string, offset, limit int) ([]model.CommentView, int64, error) {
	var comments []model.Comment
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Comment{}).Where("campaign_id = ?", campaignID)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperror.Persistence("count comments", err)
	}
	if err := query.Order("calculated_score desc").Order("created_at asc").Order("id asc").
		Offset(offset).Limit(limit).Find(&comments).Error; err != nil {
		return nil, 0, apperror.Persistence("list comments", err)
	}

	views := make([]model.CommentView, len(comments))
	if len(comments) == 0 {
		return views, total, nil
	}

	ids := make([]string, len(comments))
	index := make(map[string]int, len(comments))
	for i, c := range comments {
		views[i].Comment = c
		ids[i] = c.ID
		index[c.ID] = i
	}

	var replyCounts []struct {
		ParentID string
		Count    int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Select("parent_id, COUNT(*) AS count").
		Where("parent_id IN ?", ids).
		Group("parent_id").
		Scan(&replyCounts).Error; err != nil {
		return nil, 0, apperror.Persistence("count replies", err)
	}
	for _, rc := range replyCounts {
		views[index[rc.ParentID]].ReplyCount = rc.Count
	}

	var reactionCounts []struct {
		CommentID    string
		ReactionType model.ReactionType
		Count        int64
	}
	if err := r.db.WithContext(ctx).Model(&model.CommentReaction{}).
		Select("comment_id, reaction_type, COUNT(*) AS count").
		Where("comment_id IN ?", ids).
		Group("comment_id, reaction_type").
		Scan(&reactionCounts).Error; err != nil {
		return nil, 0, apperror.Persistence("count reactions", err)
	}
	for _, rc := range reactionCounts {
		v := &views[index[rc.CommentID]]
		switch rc.ReactionType {
		case model.ReactionAgree:
			v.AgreeCount = rc.Count
		case model.ReactionDisagree:
			v.DisagreeCount = rc.Count
		}
	}

	return views, total, nil
}

// --- Reaction ---

// GetReaction 不存在时返回 nil, nil
func (r *commentRepository) GetReaction(ctx context.Context, commentID, userID string) (*model.CommentReaction, error) {
	var reaction model.CommentReaction
	err := r.db.WithContext(ctx).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		First(&reaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Persistence("get reaction", err)
	}
	return &reaction, nil
}

// UpsertReaction 新增或覆盖表态（类型与权重），并在同一事务内重算评论得分
func (r *commentRepository) UpsertReaction(ctx context.Context, reaction *model.CommentReaction) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockComments(tx, "id = ?", reaction.CommentID); err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "comment_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"reaction_type":       reaction.ReactionType,
				"reactor_coin_weight": reaction.ReactorCoinWeight,
				"updated_at":          time.Now(),
			}),
		}).Create(reaction).Error; err != nil {
			return err
		}
		// 冲突时 reaction 上仍是新生成的 ID，回读已存储的行
		var stored model.CommentReaction
		if err := tx.Where("comment_id = ? AND user_id = ?", reaction.CommentID, reaction.UserID).First(&stored).Error; err != nil {
			return err
		}
		*reaction = stored
		return recomputeScores(tx, "id = ?", reaction.CommentID)
	})
	return apperror.Persistence("save reaction", err)
}

// DeleteReaction 没有表态时返回 false，不视为错误
func (r *commentRepository) DeleteReaction(ctx context.Context, commentID, userID string) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockComments(tx, "id = ?", commentID); err != nil {
			return err
		}
		result := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&model.CommentReaction{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		removed = true
		return recomputeScores(tx, "id = ?", commentID)
	})
	return removed, apperror.Persistence("delete reaction", err)
}

// RecalculateUserInfluence 把用户在某活动下的评论作者权重和表态权重刷新为 weight，
// 并重算所有受影响评论的得分。全部在一个事务内完成
func (r *commentRepository) RecalculateUserInfluence(ctx context.Context, campaignID, userID string, weight int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		campaignComments := tx.Model(&model.Comment{}).Select("id").Where("campaign_id = ?", campaignID)
		reacted := tx.Model(&model.CommentReaction{}).Select("comment_id").Where("user_id = ?", userID)
		affected := "campaign_id = ? AND (author_id = ? OR id IN (?))"

		if err := lockComments(tx, affected, campaignID, userID, reacted); err != nil {
			return err
		}

		if err := tx.Model(&model.Comment{}).
			Where("campaign_id = ? AND author_id = ?", campaignID, userID).
			UpdateColumn("author_coin_weight", weight).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.CommentReaction{}).
			Where("user_id = ? AND comment_id IN (?)", userID, campaignComments).
			UpdateColumn("reactor_coin_weight", weight).Error; err != nil {
			return err
		}

		return recomputeScores(tx, affected, campaignID, userID, reacted)
	})
	return apperror.Persistence("recalculate user influence", err)
}
