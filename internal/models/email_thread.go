package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailingest/internal/utils"
)

// EmailThread is keyed by (user, thread identity). The identity is the Message-ID header of
// the message that started the thread.
type EmailThread struct {
	ID            string         `gorm:"column:id;type:varchar(998);primaryKey" json:"id"`
	UserID        string         `gorm:"column:user_id;type:varchar(50);primaryKey" json:"userId"`
	AccountID     string         `gorm:"column:account_id;type:varchar(50);index" json:"accountId"`
	Subject       string         `gorm:"column:subject;type:text" json:"subject"`
	Snippet       string         `gorm:"column:snippet;type:varchar(255)" json:"snippet"`
	Participants  pq.StringArray `gorm:"column:participants;type:text[]" json:"participants"`
	LastMessageAt *time.Time     `gorm:"column:last_message_at;type:timestamp;index" json:"lastMessageAt"`
	CreatedAt     time.Time      `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (EmailThread) TableName() string {
	return "email_threads"
}

func (e *EmailThread) BeforeCreate(tx *gorm.DB) error {
	now := utils.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}
