package service

import (
	"context"
	"errors"
	"testing"
	"time"

	campaignModel "crowdvote/internal/domain/campaign/model"
	campaignRepository "crowdvote/internal/domain/campaign/repository"
	campaignService "crowdvote/internal/domain/campaign/service"
	"crowdvote/internal/domain/comment/model"
	"crowdvote/internal/domain/comment/repository"
	"crowdvote/pkg/apperror"
	"crowdvote/pkg/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	comments CommentService
	ledger   campaignService.CampaignService
	campaign *campaignModel.Campaign
}

func setup(t *testing.T) *fixture {
	db := testutil.NewTestDB(t,
		&campaignModel.Campaign{}, &campaignModel.Support{},
		&model.Comment{}, &model.CommentReaction{},
	)
	campaignRepo := campaignRepository.NewCampaignRepository(db)
	comments := NewCommentService(repository.NewCommentRepository(db), campaignService.NewSupportReader(campaignRepo), nil, nil)
	ledger := campaignService.NewCampaignService(campaignRepo, campaignService.Options{Propagator: comments})

	campaign, err := ledger.CreateCampaign(context.Background(), campaignService.CreateCampaignInput{
		Title:           "Signed edition",
		ReservationGoal: 1000,
		MinimumBid:      1,
	})
	require.NoError(t, err)

	return &fixture{comments: comments, ledger: ledger, campaign: campaign}
}

func (f *fixture) support(t *testing.T, userID string, coins int64) {
	t.Helper()
	_, err := f.ledger.RecordSupport(context.Background(), f.campaign.ID, userID, coins)
	require.NoError(t, err)
}

func (f *fixture) comment(t *testing.T, userID, content string, parentID *string) *model.Comment {
	t.Helper()
	c, err := f.comments.AddComment(context.Background(), f.campaign.ID, userID, content, parentID)
	require.NoError(t, err)
	// 同分评论按 created_at 排序
	time.Sleep(2 * time.Millisecond)
	return c
}

func TestAddComment(t *testing.T) {
	ctx := context.Background()

	t.Run("supporters only", func(t *testing.T) {
		f := setup(t)
		e := uuid.NewString()

		_, err := f.comments.AddComment(ctx, f.campaign.ID, e, "first!", nil)
		assert.True(t, errors.Is(err, apperror.ErrNotEligible))

		f.support(t, e, 1)

		c, err := f.comments.AddComment(ctx, f.campaign.ID, e, "first!", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), c.AuthorCoinWeight)
		assert.Equal(t, int64(1), c.CalculatedScore)
	})

	t.Run("blank content", func(t *testing.T) {
		f := setup(t)
		_, err := f.comments.AddComment(ctx, f.campaign.ID, uuid.NewString(), "   ", nil)
		assert.True(t, errors.Is(err, apperror.ErrValidation))
	})

	t.Run("unknown campaign", func(t *testing.T) {
		f := setup(t)
		_, err := f.comments.AddComment(ctx, uuid.NewString(), uuid.NewString(), "hello", nil)
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})

	t.Run("single level threading", func(t *testing.T) {
		f := setup(t)
		user := uuid.NewString()
		f.support(t, user, 3)

		top := f.comment(t, user, "top", nil)
		reply := f.comment(t, user, "reply", &top.ID)
		assert.Equal(t, top.ID, *reply.ParentID)

		_, err := f.comments.AddComment(ctx, f.campaign.ID, user, "nested", &reply.ID)
		assert.True(t, errors.Is(err, apperror.ErrValidation))

		missing := uuid.NewString()
		_, err = f.comments.AddComment(ctx, f.campaign.ID, user, "orphan", &missing)
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})

	t.Run("parent must belong to the same campaign", func(t *testing.T) {
		f := setup(t)
		user := uuid.NewString()
		f.support(t, user, 3)

		second, err := f.ledger.CreateCampaign(ctx, campaignService.CreateCampaignInput{Title: "Other", ReservationGoal: 5, MinimumBid: 1})
		require.NoError(t, err)
		_, err = f.ledger.RecordSupport(ctx, second.ID, user, 2)
		require.NoError(t, err)
		parent, err := f.comments.AddComment(ctx, second.ID, user, "elsewhere", nil)
		require.NoError(t, err)

		_, err = f.comments.AddComment(ctx, f.campaign.ID, user, "cross", &parent.ID)
		assert.True(t, errors.Is(err, apperror.ErrValidation))
	})
}

func TestCommentReactions(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	author, reactor := uuid.NewString(), uuid.NewString()
	f.support(t, author, 10)
	f.support(t, reactor, 5)
	c := f.comment(t, author, "Great project", nil)

	t.Run("agree adds the reactor weight", func(t *testing.T) {
		updated, err := f.comments.AddCommentReaction(ctx, c.ID, reactor, model.ReactionAgree)
		require.NoError(t, err)
		assert.Equal(t, int64(15), updated.CalculatedScore)
	})

	t.Run("repeating the same reaction changes nothing", func(t *testing.T) {
		updated, err := f.comments.AddCommentReaction(ctx, c.ID, reactor, model.ReactionAgree)
		require.NoError(t, err)
		assert.Equal(t, int64(15), updated.CalculatedScore)
	})

	t.Run("flipping to disagree", func(t *testing.T) {
		updated, err := f.comments.AddCommentReaction(ctx, c.ID, reactor, model.ReactionDisagree)
		require.NoError(t, err)
		assert.Equal(t, int64(5), updated.CalculatedScore)
	})

	t.Run("removing restores the author weight", func(t *testing.T) {
		updated, err := f.comments.RemoveCommentReaction(ctx, c.ID, reactor)
		require.NoError(t, err)
		assert.Equal(t, int64(10), updated.CalculatedScore)
	})

	t.Run("removing twice is a no-op", func(t *testing.T) {
		updated, err := f.comments.RemoveCommentReaction(ctx, c.ID, reactor)
		require.NoError(t, err)
		assert.Equal(t, int64(10), updated.CalculatedScore)
	})

	t.Run("invalid type", func(t *testing.T) {
		_, err := f.comments.AddCommentReaction(ctx, c.ID, reactor, "love")
		assert.True(t, errors.Is(err, apperror.ErrValidation))
	})

	t.Run("non supporter", func(t *testing.T) {
		_, err := f.comments.AddCommentReaction(ctx, c.ID, uuid.NewString(), model.ReactionAgree)
		assert.True(t, errors.Is(err, apperror.ErrNotEligible))
	})

	t.Run("unknown comment", func(t *testing.T) {
		_, err := f.comments.AddCommentReaction(ctx, uuid.NewString(), reactor, model.ReactionAgree)
		assert.True(t, errors.Is(err, apperror.ErrNotFound))

		_, err = f.comments.RemoveCommentReaction(ctx, uuid.NewString(), reactor)
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})
}

func TestRecalculateUserInfluenceOnComments(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	author, reactor := uuid.NewString(), uuid.NewString()
	f.support(t, author, 10)
	f.support(t, reactor, 5)
	c := f.comment(t, author, "Count me in", nil)
	_, err := f.comments.AddCommentReaction(ctx, c.ID, reactor, model.ReactionAgree)
	require.NoError(t, err)

	score := func() int64 {
		views, _, err := f.comments.FetchCommentsForCampaign(ctx, f.campaign.ID, nil, 1, 10)
		require.NoError(t, err)
		require.Len(t, views, 1)
		return views[0].CalculatedScore
	}

	t.Run("reactor support raises the reaction weight", func(t *testing.T) {
		f.support(t, reactor, 5)
		assert.Equal(t, int64(20), score())
	})

	t.Run("author support raises the author weight", func(t *testing.T) {
		f.support(t, author, 2)
		views, _, err := f.comments.FetchCommentsForCampaign(ctx, f.campaign.ID, nil, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(12), views[0].AuthorCoinWeight)
		assert.Equal(t, int64(22), views[0].CalculatedScore)
	})

	t.Run("direct call is idempotent", func(t *testing.T) {
		require.NoError(t, f.comments.RecalculateUserInfluenceOnComments(ctx, reactor, f.campaign.ID))
		require.NoError(t, f.comments.RecalculateUserInfluenceOnComments(ctx, author, f.campaign.ID))
		assert.Equal(t, int64(22), score())
	})
}

func TestEditAndDeleteComment(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	author, stranger := uuid.NewString(), uuid.NewString()
	f.support(t, author, 4)
	f.support(t, stranger, 1)
	top := f.comment(t, author, "original", nil)
	reply := f.comment(t, stranger, "reply", &top.ID)
	_, err := f.comments.AddCommentReaction(ctx, reply.ID, author, model.ReactionAgree)
	require.NoError(t, err)

	t.Run("only the author may edit", func(t *testing.T) {
		_, err := f.comments.EditComment(ctx, top.ID, stranger, "hijack")
		assert.True(t, errors.Is(err, apperror.ErrForbidden))
	})

	t.Run("edit refreshes the author weight", func(t *testing.T) {
		f.support(t, author, 6)
		edited, err := f.comments.EditComment(ctx, top.ID, author, "  updated  ")
		require.NoError(t, err)
		assert.Equal(t, "updated", edited.Content)
		assert.Equal(t, int64(10), edited.AuthorCoinWeight)
		assert.Equal(t, int64(10), edited.CalculatedScore)
	})

	t.Run("only the author may delete", func(t *testing.T) {
		err := f.comments.DeleteComment(ctx, top.ID, stranger)
		assert.True(t, errors.Is(err, apperror.ErrForbidden))
	})

	t.Run("delete removes replies", func(t *testing.T) {
		require.NoError(t, f.comments.DeleteComment(ctx, top.ID, author))

		views, total, err := f.comments.FetchCommentsForCampaign(ctx, f.campaign.ID, nil, 1, 10)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, views)

		replies, total, err := f.comments.FetchCommentsForCampaign(ctx, f.campaign.ID, &top.ID, 1, 10)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, replies)

		_, err = f.comments.AddCommentReaction(ctx, reply.ID, author, model.ReactionAgree)
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})
}

func TestFetchCommentsForCampaign(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	low, high, fan := uuid.NewString(), uuid.NewString(), uuid.NewString()
	f.support(t, low, 2)
	f.support(t, high, 9)
	f.support(t, fan, 1)

	older := f.comment(t, low, "older low", nil)
	newer := f.comment(t, low, "newer low", nil)
	best := f.comment(t, high, "high", nil)
	f.comment(t, fan, "reply one", &best.ID)
	f.comment(t, low, "reply two", &best.ID)

	_, err := f.comments.AddCommentReaction(ctx, best.ID, fan, model.ReactionAgree)
	require.NoError(t, err)
	_, err = f.comments.AddCommentReaction(ctx, best.ID, low, model.ReactionDisagree)
	require.NoError(t, err)

	t.Run("top level ordered by score then age", func(t *testing.T) {
		views, total, err := f.comments.FetchCommentsForCampaign(ctx, f.campaign.ID, nil, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, views, 3)

		assert.Equal(t, best.ID, views[0].ID)
		assert.Equal(t, int64(8), views[0].CalculatedScore)
		assert.Equal(t, int64(2), views[0].ReplyCount)
		assert.Equal(t, int64(1), views[0].AgreeCount)
		assert.Equal(t, int64(1), views[0].DisagreeCount)

		assert.Equal(t, older.ID, views[1].ID)
		assert.Equal(t, newer.ID, views[2].ID)
		assert.Zero(t, views[2].ReplyCount)
	})

	t.Run("pagination", func(t *testing.T) {
		views, total, err := f.comments.FetchCommentsForCampaign(ctx, f.campaign.ID, nil, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, views, 1)
		assert.Equal(t, newer.ID, views[0].ID)
	})

	t.Run("replies of a comment", func(t *testing.T) {
		views, total, err := f.comments.FetchCommentsForCampaign(ctx, f.campaign.ID, &best.ID, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, views, 2)
		assert.Equal(t, "reply two", views[0].Content, "weight 2 outranks weight 1")
	})

	t.Run("unknown campaign", func(t *testing.T) {
		_, _, err := f.comments.FetchCommentsForCampaign(ctx, uuid.NewString(), nil, 1, 10)
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})
}
