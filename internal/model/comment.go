package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is append-only once written.
type Comment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID    uuid.UUID `gorm:"type:uuid;not null;index" json:"task_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	Text      string    `gorm:"column:content;not null" json:"text"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
