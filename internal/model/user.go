package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User holds sign-in credentials. Everything other users may see lives on Profile.
type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	HashedPassword string    `gorm:"not null" json:"-"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
