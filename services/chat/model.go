package chat

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeOffer  MessageType = "offer"
	MessageTypeSystem MessageType = "system"
)

type ChatRoom struct {
	ID        string    `gorm:"column:id;primaryKey;type:char(26)"`
	BrandID   string    `gorm:"column:brand_id;index;not null"`
	CreatorID string    `gorm:"column:creator_id;index;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ChatRoom) TableName() string { return "chat_rooms" }

// ChatMessage is a persisted room message. SenderID is nil for system
// messages emitted by the workflow engine.
type ChatMessage struct {
	ID          string         `gorm:"column:id;primaryKey;type:char(26)"`
	ChatRoomID  string         `gorm:"column:chat_room_id;index;not null"`
	SenderID    *string        `gorm:"column:sender_id;index"`
	Message     string         `gorm:"column:message;type:text;not null"`
	MessageType MessageType    `gorm:"column:message_type;type:varchar(20);not null;default:'text'"`
	OfferData   datatypes.JSON `gorm:"column:offer_data"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

// OfferPayload is the structured body attached to offer messages. It is the
// only shape ever written to the offer_data column.
type OfferPayload struct {
	OfferID       string    `json:"offer_id"`
	Budget        string    `json:"budget"`
	EstimatedDays int       `json:"estimated_days"`
	Status        string    `json:"status"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (p OfferPayload) MarshalColumn() (datatypes.JSON, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func (m *ChatMessage) DecodeOfferPayload() (*OfferPayload, error) {
	if len(m.OfferData) == 0 {
		return nil, nil
	}
	var p OfferPayload
	if err := json.Unmarshal(m.OfferData, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
