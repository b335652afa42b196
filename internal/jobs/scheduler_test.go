package jobs

import (
	"context"
	"errors"
	"testing"

	"crowdvote/internal/domain/campaign/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type MockLister struct {
	mock.Mock
}

func (m *MockLister) ListIDsByStatus(ctx context.Context, statuses ...model.CampaignStatus) ([]string, error) {
	args := m.Called(statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockRecalculator struct {
	mock.Mock
}

func (m *MockRecalculator) RecalculateCampaignData(ctx context.Context, campaignID string) error {
	return m.Called(campaignID).Error(0)
}

var active = []model.CampaignStatus{model.StatusLive, model.StatusGoalReached}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("recalculates every active campaign", func(t *testing.T) {
		lister, ranker := new(MockLister), new(MockRecalculator)
		lister.On("ListIDsByStatus", active).Return([]string{"c1", "c2"}, nil)
		ranker.On("RecalculateCampaignData", "c1").Return(nil)
		ranker.On("RecalculateCampaignData", "c2").Return(nil)

		n, err := NewScheduler("@every 1m", lister, ranker, zap.NewNop()).Reconcile(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		ranker.AssertExpectations(t)
	})

	t.Run("keeps going after a failure", func(t *testing.T) {
		lister, ranker := new(MockLister), new(MockRecalculator)
		lister.On("ListIDsByStatus", active).Return([]string{"c1", "c2", "c3"}, nil)
		ranker.On("RecalculateCampaignData", "c1").Return(errors.New("lock timeout"))
		ranker.On("RecalculateCampaignData", "c2").Return(nil)
		ranker.On("RecalculateCampaignData", "c3").Return(errors.New("conn reset"))

		n, err := NewScheduler("@every 1m", lister, ranker, zap.NewNop()).Reconcile(ctx)
		assert.Equal(t, 3, n)
		assert.Len(t, multierr.Errors(err), 2)
		ranker.AssertExpectations(t)
	})

	t.Run("listing failure", func(t *testing.T) {
		lister, ranker := new(MockLister), new(MockRecalculator)
		lister.On("ListIDsByStatus", active).Return(nil, errors.New("db down"))

		_, err := NewScheduler("@every 1m", lister, ranker, zap.NewNop()).Reconcile(ctx)
		assert.Error(t, err)
		ranker.AssertNotCalled(t, "RecalculateCampaignData", mock.Anything)
	})
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler("not a cron spec", new(MockLister), new(MockRecalculator), zap.NewNop())
	assert.Error(t, s.Start(context.Background()))
}
