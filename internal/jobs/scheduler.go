// Package jobs 定时任务：周期性全量重排活动，修复请求路径上重排失败留下的不一致
package jobs

import (
	"context"
	"time"

	"crowdvote/internal/domain/campaign/model"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// CampaignLister 列出需要对账的活动
type CampaignLister interface {
	ListIDsByStatus(ctx context.Context, statuses ...model.CampaignStatus) ([]string, error)
}

// Recalculator 全量重排单个活动
type Recalculator interface {
	RecalculateCampaignData(ctx context.Context, campaignID string) error
}

type Scheduler struct {
	cron    *cron.Cron
	lister  CampaignLister
	ranker  Recalculator
	spec    string
	timeout time.Duration
	log     *zap.Logger
}

func NewScheduler(spec string, lister CampaignLister, ranker Recalculator, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		lister:  lister,
		ranker:  ranker,
		spec:    spec,
		timeout: 5 * time.Minute,
		log:     log.Named("jobs"),
	}
}

// Start 注册并启动定时任务
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		start := time.Now()
		n, err := s.Reconcile(runCtx)
		if err != nil {
			s.log.Error("reconcile finished with errors", zap.Int("campaigns", n), zap.Error(err))
			return
		}
		s.log.Info("reconcile finished", zap.Int("campaigns", n), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.String("reconcile_spec", s.spec))
	return nil
}

// Stop 等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Reconcile 重排所有进行中和已达标的活动。单个活动失败不影响其它活动，错误合并返回
func (s *Scheduler) Reconcile(ctx context.Context) (int, error) {
	ids, err := s.lister.ListIDsByStatus(ctx, model.StatusLive, model.StatusGoalReached)
	if err != nil {
		return 0, err
	}

	var errs error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		if err := s.ranker.RecalculateCampaignData(ctx, id); err != nil {
			s.log.Warn("reconcile campaign failed", zap.String("campaign_id", id), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return len(ids), errs
}
