package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to users.
type Notification struct {
	ID        uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID                  `gorm:"type:uuid;not null"`
	Category  enums.NotificationCategory `gorm:"type:notification_category;not null"`
	Title     string                     `gorm:"type:text;not null"`
	Message   string                     `gorm:"type:text;not null"`
	Link      *string                    `gorm:"type:text"`
	ReadAt    *time.Time                 `gorm:"type:timestamptz"`
	CreatedAt time.Time                  `gorm:"type:timestamptz;autoCreateTime"`
}
