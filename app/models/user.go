package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// User is the owner record for provisioned eSIM profiles. Users are
// authenticated upstream (Telegram), so only the external identity and a
// display name are kept here.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TelegramID string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"telegram_id" validate:"required,max=32"`
	Username   string    `gorm:"type:varchar(150)" json:"username" validate:"max=150"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}
