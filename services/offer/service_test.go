package offer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"creatorhub-platform/pkg/errutil"
	"creatorhub-platform/services/chat"
	"creatorhub-platform/services/contract"
	"creatorhub-platform/services/creator"
	"creatorhub-platform/services/notification"
	"creatorhub-platform/services/testutil"
	"creatorhub-platform/services/timeline"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeSequence struct {
	n int
}

func (f *fakeSequence) NextContractCode(ctx context.Context) (string, error) {
	f.n++
	return fmt.Sprintf("CT-202608-%04d", f.n), nil
}

func (f *fakeSequence) NextWithdrawalCode(ctx context.Context) (string, error) {
	f.n++
	return fmt.Sprintf("WD-202608-%04d", f.n), nil
}

type fixture struct {
	db     *gorm.DB
	offers *Service
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewTestDB(t,
		&creator.Creator{},
		&chat.ChatRoom{},
		&chat.ChatMessage{},
		&notification.Notification{},
		&contract.Contract{},
		&timeline.Milestone{},
		&Offer{},
	)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	creators := creator.NewService(creator.ServiceParams{DB: db})
	chats := chat.NewService(chat.ServiceParams{DB: db, Node: node})
	notifier := notification.NewService(notification.ServiceParams{DB: db, Node: node, Chat: chats})
	contracts := contract.NewService(contract.ServiceParams{DB: db, Node: node, Seq: &fakeSequence{}})
	timelines := timeline.NewService(timeline.ServiceParams{DB: db, Node: node, Creators: creators, Notifier: notifier})

	offers := NewService(ServiceParams{
		DB:        db,
		Node:      node,
		Creators:  creators,
		Contracts: contracts,
		Timelines: timelines,
		Chat:      chats,
		Notifier:  notifier,
	})

	return &fixture{db: db, offers: offers}
}

func (f *fixture) seedCreator(t *testing.T, id string, mutate func(*creator.Creator)) {
	c := &creator.Creator{
		ID:    id,
		Name:  "Creator " + id,
		Email: id + "@example.com",
	}
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, f.db.Create(c).Error)
}

func TestCreateOfferAndChatMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCreator(t, "creator-1", nil)

	o, err := f.offers.Create(ctx, CreateInput{
		BrandID:       "brand-1",
		CreatorID:     "creator-1",
		ChatRoomID:    "room-1",
		Budget:        decimal.RequireFromString("1000.00"),
		EstimatedDays: 20,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, o.Status)
	require.WithinDuration(t, time.Now().Add(TTL), o.ExpiresAt, 5*time.Second)

	var msgs []chat.ChatMessage
	require.NoError(t, f.db.Where("chat_room_id = ?", "room-1").Find(&msgs).Error)
	require.Len(t, msgs, 1)
	require.Equal(t, chat.MessageTypeOffer, msgs[0].MessageType)

	payload, err := msgs[0].DecodeOfferPayload()
	require.NoError(t, err)
	require.Equal(t, o.ID, payload.OfferID)

	var rows []notification.Notification
	require.NoError(t, f.db.Where("user_id = ?", "creator-1").Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, notification.KindOfferReceived, rows[0].Type)
}

func TestCreateOfferBlockedDuringPenalty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	until := time.Now().Add(3 * 24 * time.Hour)
	f.seedCreator(t, "creator-1", func(c *creator.Creator) {
		c.PenaltyUntil = &until
		c.PenaltyReason = "overdue milestone"
	})

	_, err := f.offers.Create(ctx, CreateInput{
		BrandID:       "brand-1",
		CreatorID:     "creator-1",
		ChatRoomID:    "room-1",
		Budget:        decimal.RequireFromString("1000.00"),
		EstimatedDays: 20,
	})
	require.True(t, errutil.Is(err, errutil.StatusForbidden))
}

func TestCreateOfferAllowedAfterPenaltyExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	until := time.Now().Add(-time.Hour)
	f.seedCreator(t, "creator-1", func(c *creator.Creator) {
		c.PenaltyUntil = &until
	})

	_, err := f.offers.Create(ctx, CreateInput{
		BrandID:       "brand-1",
		CreatorID:     "creator-1",
		ChatRoomID:    "room-1",
		Budget:        decimal.RequireFromString("1000.00"),
		EstimatedDays: 20,
	})
	require.NoError(t, err)
}

func TestCreateOfferDuplicatePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCreator(t, "creator-1", nil)

	in := CreateInput{
		BrandID:       "brand-1",
		CreatorID:     "creator-1",
		ChatRoomID:    "room-1",
		Budget:        decimal.RequireFromString("1000.00"),
		EstimatedDays: 20,
	}

	_, err := f.offers.Create(ctx, in)
	require.NoError(t, err)

	_, err = f.offers.Create(ctx, in)
	require.True(t, errutil.Is(err, errutil.StatusConflict))
}

func TestAcceptCreatesContractAndLadder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCreator(t, "creator-1", nil)

	o, err := f.offers.Create(ctx, CreateInput{
		BrandID:       "brand-1",
		CreatorID:     "creator-1",
		ChatRoomID:    "room-1",
		Budget:        decimal.RequireFromString("1000.00"),
		EstimatedDays: 20,
	})
	require.NoError(t, err)

	c, err := f.offers.Accept(ctx, o.ID, "creator-1")
	require.NoError(t, err)
	require.Equal(t, o.ID, c.OfferID)
	require.True(t, c.PlatformFee.Add(c.CreatorAmount).Equal(c.Budget))

	got, err := f.offers.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, got.Status)

	var milestones []timeline.Milestone
	require.NoError(t, f.db.Where("contract_id = ?", c.ID).Order("position ASC").Find(&milestones).Error)
	require.Len(t, milestones, 4)
	for i, m := range milestones {
		require.Equal(t, i+1, m.Position)
		if i > 0 {
			require.False(t, m.Deadline.Before(milestones[i-1].Deadline))
		}
	}
}

func TestAcceptExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCreator(t, "creator-1", nil)

	o, err := f.offers.Create(ctx, CreateInput{
		BrandID:       "brand-1",
		CreatorID:     "creator-1",
		ChatRoomID:    "room-1",
		Budget:        decimal.RequireFromString("1000.00"),
		EstimatedDays: 20,
	})
	require.NoError(t, err)

	_, err = f.offers.Accept(ctx, o.ID, "creator-1")
	require.NoError(t, err)

	_, err = f.offers.Accept(ctx, o.ID, "creator-1")
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	var count int64
	require.NoError(t, f.db.Model(&contract.Contract{}).Where("offer_id = ?", o.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRejectNotifiesBrand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCreator(t, "creator-1", nil)

	o, err := f.offers.Create(ctx, CreateInput{
		BrandID:       "brand-1",
		CreatorID:     "creator-1",
		ChatRoomID:    "room-1",
		Budget:        decimal.RequireFromString("1000.00"),
		EstimatedDays: 20,
	})
	require.NoError(t, err)

	require.NoError(t, f.offers.Reject(ctx, o.ID, "creator-1"))

	var rows []notification.Notification
	require.NoError(t, f.db.Where("user_id = ? AND type = ?", "brand-1", notification.KindOfferRejected).Find(&rows).Error)
	require.Len(t, rows, 1)
}

func TestExpireDueIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	stale := &Offer{
		ID:            "offer-stale",
		BrandID:       "brand-1",
		CreatorID:     "creator-1",
		ChatRoomID:    "room-1",
		Budget:        decimal.RequireFromString("100.00"),
		EstimatedDays: 5,
		Status:        StatusPending,
		ExpiresAt:     now.Add(-time.Hour),
	}
	fresh := &Offer{
		ID:            "offer-fresh",
		BrandID:       "brand-2",
		CreatorID:     "creator-2",
		ChatRoomID:    "room-2",
		Budget:        decimal.RequireFromString("100.00"),
		EstimatedDays: 5,
		Status:        StatusPending,
		ExpiresAt:     now.Add(time.Hour),
	}
	require.NoError(t, f.db.Create(stale).Error)
	require.NoError(t, f.db.Create(fresh).Error)

	count, err := f.offers.ExpireDue(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	count, err = f.offers.ExpireDue(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	got, err := f.offers.Get(ctx, "offer-stale")
	require.NoError(t, err)
	require.Equal(t, StatusExpired, got.Status)

	got, err = f.offers.Get(ctx, "offer-fresh")
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
}
