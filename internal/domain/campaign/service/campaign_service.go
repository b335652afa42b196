package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crowdvote/internal/domain/campaign/model"
	"crowdvote/internal/domain/campaign/repository"
	"crowdvote/internal/pkg/worker"
	"crowdvote/pkg/apperror"
	"crowdvote/pkg/metrics"
	"crowdvote/pkg/utils"

	"go.uber.org/zap"
)

// InfluencePropagator 助力金额变化后刷新该用户在评论区的权重
type InfluencePropagator interface {
	RecalculateUserInfluenceOnComments(ctx context.Context, userID, campaignID string) error
}

type CampaignService interface {
	CreateCampaign(ctx context.Context, input CreateCampaignInput) (*model.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, status model.CampaignStatus, page, limit int) ([]model.Campaign, int64, error)
	UpdateStatus(ctx context.Context, id string, status model.CampaignStatus) (*model.Campaign, error)

	RecordSupport(ctx context.Context, campaignID, userID string, coins int64) (*model.Support, error)
	RecalculateCampaignData(ctx context.Context, campaignID string) error
	GetLeaderboard(ctx context.Context, campaignID string, page, limit int) ([]model.Support, int64, error)

	GetUserCampaignSupport(ctx context.Context, campaignID, userID string) (*model.Support, error)
	HasUserSupportedCampaign(ctx context.Context, userID, campaignID string) (bool, error)
	GetUserCoinsSpentOnCampaign(ctx context.Context, userID, campaignID string) (int64, error)
}

type CreateCampaignInput struct {
	Title           string
	Description     string
	ReservationGoal int64
	MinimumBid      int64
}

// Options 可选依赖，均可为 nil
type Options struct {
	Leaderboard repository.Leaderboard
	Propagator  InfluencePropagator
	Workers     worker.Submitter
	Logger      *zap.Logger
	Metrics     *metrics.MetricsCollector
}

type campaignService struct {
	*SupportReader
	repo        repository.CampaignRepository
	leaderboard repository.Leaderboard
	propagator  InfluencePropagator
	workers     worker.Submitter
	log         *zap.Logger
	metrics     *metrics.MetricsCollector
	now         func() time.Time
}

func NewCampaignService(repo repository.CampaignRepository, opts Options) CampaignService {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &campaignService{
		SupportReader: NewSupportReader(repo),
		repo:          repo,
		leaderboard:   opts.Leaderboard,
		propagator:    opts.Propagator,
		workers:       opts.Workers,
		log:           log.Named("campaign"),
		metrics:       opts.Metrics,
		now:           time.Now,
	}
}

func (s *campaignService) CreateCampaign(ctx context.Context, input CreateCampaignInput) (*model.Campaign, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperror.Validation("title is required")
	}
	if input.ReservationGoal < 1 {
		return nil, apperror.Validation("reservation goal must be at least 1")
	}
	if input.MinimumBid < 1 {
		return nil, apperror.Validation("minimum bid must be at least 1")
	}

	campaign := &model.Campaign{
		Title:           title,
		Description:     input.Description,
		ReservationGoal: input.ReservationGoal,
		MinimumBid:      input.MinimumBid,
		Status:          model.StatusLive,
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

func (s *campaignService) ListCampaigns(ctx context.Context, status model.CampaignStatus, page, limit int) ([]model.Campaign, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown campaign status %q", status))
	}
	pager := utils.Pagination{Page: page, Limit: limit}
	offset, limit := pager.GetPageOffset()
	return s.repo.List(ctx, status, offset, limit)
}

// 允许的状态流转：目标 -> 可来源状态。goal_reached 只能由重排步骤设置
var transitions = map[model.CampaignStatus][]model.CampaignStatus{
	model.StatusKickstarter: {model.StatusLive, model.StatusGoalReached},
	model.StatusArchived:    {model.StatusLive, model.StatusGoalReached, model.StatusKickstarter},
}

func (s *campaignService) UpdateStatus(ctx context.Context, id string, status model.CampaignStatus) (*model.Campaign, error) {
	from, ok := transitions[status]
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("campaign status cannot be set to %q", status))
	}

	changed, err := s.repo.TransitionStatus(ctx, id, from, status)
	if err != nil {
		return nil, err
	}

	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, apperror.Validation(fmt.Sprintf("campaign cannot move from %s to %s", campaign.Status, status))
	}
	return campaign, nil
}

// RecordSupport 累加用户的助力并同步重排。
// 重排与评论权重刷新失败不影响助力结果，只记录日志并放入后台重试
func (s *campaignService) RecordSupport(ctx context.Context, campaignID, userID string, coins int64) (*model.Support, error) {
	if coins < 1 {
		return nil, apperror.Validation("coins must be at least 1")
	}
	if campaignID == "" || userID == "" {
		return nil, apperror.Validation("campaign and user are required")
	}

	campaign, err := s.repo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == model.StatusArchived {
		return nil, apperror.Validation("campaign is archived")
	}

	err = s.repo.IncrementSupport(ctx, campaignID, userID, coins)
	s.metrics.RecordSupport(coins, err)
	if err != nil {
		return nil, err
	}

	if err := s.RecalculateCampaignData(ctx, campaignID); err != nil {
		s.scheduleRetry("recalculate_campaign", campaignID, userID, err, func(ctx context.Context) error {
			return s.RecalculateCampaignData(ctx, campaignID)
		})
	}

	if s.propagator != nil {
		if err := s.propagator.RecalculateUserInfluenceOnComments(ctx, userID, campaignID); err != nil {
			s.scheduleRetry("propagate_influence", campaignID, userID, err, func(ctx context.Context) error {
				return s.propagator.RecalculateUserInfluenceOnComments(ctx, userID, campaignID)
			})
		}
	}

	return s.repo.GetSupport(ctx, campaignID, userID)
}

// scheduleRetry 记录失败的次要步骤并交给后台重试
func (s *campaignService) scheduleRetry(step, campaignID, userID string, cause error, run func(ctx context.Context) error) {
	s.metrics.RecordBackgroundFailure(step)
	s.log.Warn("secondary step failed, scheduling retry",
		zap.String("step", step),
		zap.String("campaign_id", campaignID),
		zap.String("user_id", userID),
		zap.Error(cause),
	)

	if s.workers == nil {
		return
	}
	if !s.workers.AddTask(worker.Task{Name: step, Key: campaignID + ":" + userID, Run: run}) {
		s.log.Error("retry queue rejected task",
			zap.String("step", step),
			zap.String("campaign_id", campaignID),
		)
	}
}

// RecalculateCampaignData 全量重排一个活动。可重复执行，结果只取决于当前助力数据
func (s *campaignService) RecalculateCampaignData(ctx context.Context, campaignID string) error {
	start := s.now()
	ranked, err := s.repo.RecalculateRanks(ctx, campaignID, RankSupports)
	if err != nil {
		return err
	}
	s.metrics.RecordRecompute(len(ranked), time.Since(start))

	reached, err := s.repo.MarkGoalReached(ctx, campaignID, s.now())
	switch {
	case err != nil:
		s.metrics.RecordBackgroundFailure("goal_check")
		s.log.Warn("goal check failed", zap.String("campaign_id", campaignID), zap.Error(err))
	case reached:
		s.metrics.RecordGoalReached()
		s.log.Info("campaign reached its goal", zap.String("campaign_id", campaignID))
	}

	if s.leaderboard != nil {
		var version int64
		for _, r := range ranked {
			version += r.CoinsSpent
		}
		applied, err := s.leaderboard.Publish(ctx, campaignID, version, ranked)
		switch {
		case err != nil:
			s.metrics.RecordBackgroundFailure("leaderboard_publish")
			s.log.Warn("leaderboard publish failed", zap.String("campaign_id", campaignID), zap.Error(err))
		case !applied:
			s.log.Debug("stale leaderboard snapshot skipped",
				zap.String("campaign_id", campaignID),
				zap.Int64("version", version),
			)
		}
	}
	return nil
}

// GetLeaderboard 优先读缓存，未命中或出错时回源数据库
func (s *campaignService) GetLeaderboard(ctx context.Context, campaignID string, page, limit int) ([]model.Support, int64, error) {
	if _, err := s.repo.GetByID(ctx, campaignID); err != nil {
		return nil, 0, err
	}
	pager := utils.Pagination{Page: page, Limit: limit}
	offset, limit := pager.GetPageOffset()

	if s.leaderboard != nil {
		supports, total, ok, err := s.leaderboard.Page(ctx, campaignID, offset, limit)
		if err != nil {
			s.log.Warn("leaderboard cache read failed", zap.String("campaign_id", campaignID), zap.Error(err))
		} else if ok {
			for i := range supports {
				supports[i].DiscountPercentage = DiscountForPosition(supports[i].Position)
			}
			return supports, total, nil
		}
	}

	return s.repo.ListSupportsByPosition(ctx, campaignID, offset, limit)
}
