package chat

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB, node: p.Node}
}

// PostSystem writes a system message (nil sender) into a room.
func (s *Service) PostSystem(ctx context.Context, roomID, message string) (*ChatMessage, error) {
	msg := &ChatMessage{
		ID:          s.node.Generate().String(),
		ChatRoomID:  roomID,
		SenderID:    nil,
		Message:     message,
		MessageType: MessageTypeSystem,
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// PostOffer writes an offer message carrying the typed offer payload.
func (s *Service) PostOffer(ctx context.Context, roomID, senderID, message string, payload OfferPayload) (*ChatMessage, error) {
	data, err := payload.MarshalColumn()
	if err != nil {
		return nil, err
	}

	msg := &ChatMessage{
		ID:          s.node.Generate().String(),
		ChatRoomID:  roomID,
		SenderID:    &senderID,
		Message:     message,
		MessageType: MessageTypeOffer,
		OfferData:   data,
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}
