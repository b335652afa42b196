package service

import (
	"context"
	"strings"

	campaignModel "crowdvote/internal/domain/campaign/model"
	"crowdvote/internal/domain/comment/model"
	"crowdvote/internal/domain/comment/repository"
	"crowdvote/pkg/apperror"
	"crowdvote/pkg/metrics"
	"crowdvote/pkg/utils"

	"go.uber.org/zap"
)

// SupportLookup 助力账本中评论模块需要的部分
type SupportLookup interface {
	GetCampaign(ctx context.Context, id string) (*campaignModel.Campaign, error)
	HasUserSupportedCampaign(ctx context.Context, userID, campaignID string) (bool, error)
	GetUserCoinsSpentOnCampaign(ctx context.Context, userID, campaignID string) (int64, error)
}

type CommentService interface {
	AddComment(ctx context.Context, campaignID, userID, content string, parentID *string) (*model.Comment, error)
	EditComment(ctx context.Context, commentID, userID, content string) (*model.Comment, error)
	DeleteComment(ctx context.Context, commentID, userID string) error
	FetchCommentsForCampaign(ctx context.Context, campaignID string, parentID *string, page, limit int) ([]model.CommentView, int64, error)

	AddCommentReaction(ctx context.Context, commentID, userID string, reactionType model.ReactionType) (*model.Comment, error)
	RemoveCommentReaction(ctx context.Context, commentID, userID string) (*model.Comment, error)

	RecalculateUserInfluenceOnComments(ctx context.Context, userID, campaignID string) error
}

type commentService struct {
	repo    repository.CommentRepository
	ledger  SupportLookup
	log     *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewCommentService(repo repository.CommentRepository, ledger SupportLookup, log *zap.Logger, m *metrics.MetricsCollector) CommentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &commentService{
		repo:    repo,
		ledger:  ledger,
		log:     log.Named("comment"),
		metrics: m,
	}
}

// eligibleWeight 校验用户已助力该活动并返回其当前权重
func (s *commentService) eligibleWeight(ctx context.Context, userID, campaignID, action string) (int64, error) {
	supported, err := s.ledger.HasUserSupportedCampaign(ctx, userID, campaignID)
	if err != nil {
		return 0, err
	}
	if !supported {
		return 0, apperror.NotEligible("you must support this campaign before you can " + action)
	}
	return s.ledger.GetUserCoinsSpentOnCampaign(ctx, userID, campaignID)
}

func (s *commentService) AddComment(ctx context.Context, campaignID, userID, content string, parentID *string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.Validation("comment content is required")
	}

	if _, err := s.ledger.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	weight, err := s.eligibleWeight(ctx, userID, campaignID, "comment")
	if err != nil {
		return nil, err
	}

	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		parent, err := s.repo.GetByID(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.CampaignID != campaignID {
			return nil, apperror.Validation("parent comment belongs to another campaign")
		}
		if parent.ParentID != nil {
			return nil, apperror.Validation("replies cannot be replied to")
		}
	}

	comment := &model.Comment{
		CampaignID:       campaignID,
		AuthorID:         userID,
		ParentID:         parentID,
		Content:          content,
		AuthorCoinWeight: weight,
		CalculatedScore:  weight,
	}
	if err := s.repo.Create(ctx, comment); err != nil {
		return nil, err
	}
	s.metrics.RecordComment()
	return comment, nil
}

// ownComment 读取评论并校验作者身份
func (s *commentService) ownComment(ctx context.Context, commentID, userID string) (*model.Comment, error) {
	comment, err := s.repo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != userID {
		return nil, apperror.Forbidden("only the author can change this comment")
	}
	return comment, nil
}

// EditComment 修改内容，同时刷新作者权重
func (s *commentService) EditComment(ctx context.Context, commentID, userID, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.Validation("comment content is required")
	}

	comment, err := s.ownComment(ctx, commentID, userID)
	if err != nil {
		return nil, err
	}

	weight, err := s.ledger.GetUserCoinsSpentOnCampaign(ctx, userID, comment.CampaignID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateContent(ctx, commentID, content, weight); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, commentID)
}

func (s *commentService) DeleteComment(ctx context.Context, commentID, userID string) error {
	if _, err := s.ownComment(ctx, commentID, userID); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, commentID)
	if err != nil {
		return err
	}
	s.log.Info("comment deleted",
		zap.String("comment_id", commentID),
		zap.String("user_id", userID),
		zap.Int64("comments_removed", deleted),
	)
	return nil
}

func (s *commentService) FetchCommentsForCampaign(ctx context.Context, campaignID string, parentID *string, page, limit int) ([]model.CommentView, int64, error) {
	if _, err := s.ledger.GetCampaign(ctx, campaignID); err != nil {
		return nil, 0, err
	}
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	pager := utils.Pagination{Page: page, Limit: limit}
	offset, limit := pager.GetPageOffset()
	return s.repo.ListByCampaign(ctx, campaignID, parentID, offset, limit)
}

// AddCommentReaction 新增、刷新或切换表态，返回重算得分后的评论
func (s *commentService) AddCommentReaction(ctx context.Context, commentID, userID string, reactionType model.ReactionType) (*model.Comment, error) {
	if !reactionType.Valid() {
		return nil, apperror.Validation("reaction type must be agree or disagree")
	}

	comment, err := s.repo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}

	weight, err := s.eligibleWeight(ctx, userID, comment.CampaignID, "react")
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetReaction(ctx, commentID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpsertReaction(ctx, &model.CommentReaction{
		CommentID:         commentID,
		UserID:            userID,
		ReactionType:      reactionType,
		ReactorCoinWeight: weight,
	}); err != nil {
		return nil, err
	}

	switch {
	case existing == nil:
		s.metrics.RecordReaction("add")
	case existing.ReactionType != reactionType:
		s.metrics.RecordReaction("flip")
	default:
		s.metrics.RecordReaction("refresh")
	}
	return s.repo.GetByID(ctx, commentID)
}

// RemoveCommentReaction 没有表态时什么也不做
func (s *commentService) RemoveCommentReaction(ctx context.Context, commentID, userID string) (*model.Comment, error) {
	if _, err := s.repo.GetByID(ctx, commentID); err != nil {
		return nil, err
	}

	removed, err := s.repo.DeleteReaction(ctx, commentID, userID)
	if err != nil {
		return nil, err
	}
	if removed {
		s.metrics.RecordReaction("remove")
	}
	return s.repo.GetByID(ctx, commentID)
}

// RecalculateUserInfluenceOnComments 助力金额变化后，把新权重回写到该用户在活动下的评论和表态
func (s *commentService) RecalculateUserInfluenceOnComments(ctx context.Context, userID, campaignID string) error {
	weight, err := s.ledger.GetUserCoinsSpentOnCampaign(ctx, userID, campaignID)
	if err != nil {
		return err
	}
	if err := s.repo.RecalculateUserInfluence(ctx, campaignID, userID, weight); err != nil {
		return err
	}
	s.log.Debug("user influence refreshed",
		zap.String("campaign_id", campaignID),
		zap.String("user_id", userID),
		zap.Int64("weight", weight),
	)
	return nil
}
