package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"creatorhub-platform/pkg/db/pagination"
	"creatorhub-platform/services/chat"
	"creatorhub-platform/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type failingChat struct{}

func (failingChat) PostSystem(ctx context.Context, roomID, message string) (*chat.ChatMessage, error) {
	return nil, errors.New("chat is down")
}

func newTestService(t *testing.T) (*Service, *snowflake.Node) {
	db := testutil.NewTestDB(t, &Notification{}, &chat.ChatRoom{}, &chat.ChatMessage{})
	node, err := snowflake.NewNode(6)
	require.NoError(t, err)

	chats := chat.NewService(chat.ServiceParams{DB: db, Node: node})
	return NewService(ServiceParams{DB: db, Node: node, Chat: chats}), node
}

func TestDispatchFansOutPerRecipient(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Dispatch(ctx, Event{
		Kind:       KindMilestoneOverdue,
		Title:      "Milestone overdue",
		Message:    "deadline passed",
		Recipients: []string{"creator-1", "brand-1"},
		Payload:    OverduePayload{MilestoneID: "m1", ContractID: "c1"},
	})
	require.NoError(t, err)

	var rows []Notification
	require.NoError(t, svc.db.Order("user_id ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	require.Equal(t, "brand-1", rows[0].UserID)
	require.Equal(t, "creator-1", rows[1].UserID)
	for _, row := range rows {
		require.Equal(t, KindMilestoneOverdue, row.Type)
		require.False(t, row.IsRead)
		require.NotEmpty(t, row.Data)
	}
}

func TestDispatchWritesSystemChatMessage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Dispatch(ctx, Event{
		Kind:        KindOfferAccepted,
		Title:       "Offer accepted",
		Message:     "contract started",
		Recipients:  []string{"brand-1"},
		ChatRoomID:  "room-1",
		ChatMessage: "Offer accepted.",
	})
	require.NoError(t, err)

	var msg chat.ChatMessage
	require.NoError(t, svc.db.Where("chat_room_id = ?", "room-1").First(&msg).Error)
	require.Equal(t, chat.MessageTypeSystem, msg.MessageType)
	require.Nil(t, msg.SenderID)
	require.Equal(t, "Offer accepted.", msg.Message)
}

func TestDispatchSurvivesChatFailure(t *testing.T) {
	svc, _ := newTestService(t)
	svc.chat = failingChat{}
	ctx := context.Background()

	err := svc.Dispatch(ctx, Event{
		Kind:       KindOfferAccepted,
		Title:      "Offer accepted",
		Message:    "contract started",
		Recipients: []string{"brand-1"},
		ChatRoomID: "room-1",
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, svc.db.Model(&Notification{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestMarkReadOnlyOwnRows(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Dispatch(ctx, Event{
		Kind:       KindPaymentCompleted,
		Title:      "Payment completed",
		Recipients: []string{"brand-1", "brand-2"},
	}))

	var rows []Notification
	require.NoError(t, svc.db.Find(&rows).Error)
	require.Len(t, rows, 2)

	ids := []string{rows[0].ID, rows[1].ID}

	updated, err := svc.MarkRead(ctx, "brand-1", ids)
	require.NoError(t, err)
	require.EqualValues(t, 1, updated)

	// already read, nothing to do
	updated, err = svc.MarkRead(ctx, "brand-1", ids)
	require.NoError(t, err)
	require.EqualValues(t, 0, updated)
}

func TestListPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, svc.Dispatch(ctx, Event{
			Kind:       KindOfferReceived,
			Title:      "New offer received",
			Recipients: []string{"creator-1"},
		}))
	}

	rows, info, err := svc.List(ctx, "creator-1", pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 10)
	require.True(t, info.HasMore)
	require.NotEmpty(t, info.NextCursor)

	rows, info, err = svc.List(ctx, "someone-else", pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Empty(t, rows)
	require.False(t, info.HasMore)
}
