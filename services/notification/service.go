package notification

import (
	"context"
	"encoding/json"
	"time"

	"creatorhub-platform/pkg/db/pagination"
	"creatorhub-platform/services/chat"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatSink posts system messages into a room. Satisfied by *chat.Service.
type ChatSink interface {
	PostSystem(ctx context.Context, roomID, message string) (*chat.ChatMessage, error)
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	chat ChatSink
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
	Chat *chat.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB, node: p.Node, chat: p.Chat}
}

// Dispatch persists one notification row per recipient, then emits an
// optional system chat message. Chat delivery is best-effort: the state
// transition that produced the event has already been committed, so a chat
// failure is logged and swallowed.
func (s *Service) Dispatch(ctx context.Context, ev Event) error {
	var data datatypes.JSON
	if ev.Payload != nil {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return err
		}
		data = datatypes.JSON(b)
	}

	rows := make([]*Notification, 0, len(ev.Recipients))
	for _, userID := range ev.Recipients {
		rows = append(rows, &Notification{
			ID:      s.node.Generate().String(),
			UserID:  userID,
			Type:    ev.Kind,
			Title:   ev.Title,
			Message: ev.Message,
			Data:    data,
		})
	}

	if len(rows) > 0 {
		if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
			return err
		}
	}

	if ev.ChatRoomID != "" {
		msg := ev.ChatMessage
		if msg == "" {
			msg = ev.Message
		}
		if _, err := s.chat.PostSystem(ctx, ev.ChatRoomID, msg); err != nil {
			zap.L().Warn("failed to post system chat message",
				zap.String("chat_room_id", ev.ChatRoomID),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (s *Service) List(ctx context.Context, userID string, page pagination.Pagination) ([]*Notification, *pagination.PageInfo, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 20
	}

	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if page.Cursor != "" {
		cursor, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, nil, err
		}
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []*Notification
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	rows, info := pagination.BuildPageInfo(rows, limit, func(n *Notification) string {
		c, _ := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: n.CreatedAt.Format(time.RFC3339Nano),
			ID:        n.ID,
		})
		return c
	})

	return rows, info, nil
}

func (s *Service) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND id IN ? AND is_read = ?", userID, ids, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}
